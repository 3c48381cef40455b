package config

import "time"

// DefaultInferenceURL is the generative model endpoint used for transcription.
const DefaultInferenceURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"

// ClientConfig holds runtime configuration for the field client.
type ClientConfig struct {
	APIBaseURL              string
	RequestTimeout          time.Duration
	SessionAttempts         int
	SessionRetryDelay       time.Duration
	InferenceURL            string
	InferenceAPIKey         string
	InferenceTimeout        time.Duration
	InferenceMaxRetries     int
	InferenceRetryDelay     time.Duration
	InferenceIncludeContext bool
	RendererURL             string
	RendererTimeout         time.Duration
	ReportDir               string
}

// LoadClientConfig constructs a ClientConfig from environment variables.
func LoadClientConfig() ClientConfig {
	return ClientConfig{
		APIBaseURL:              GetString("SITERIGHT_API", "http://localhost:4000"),
		RequestTimeout:          GetSeconds("SITERIGHT_REQUEST_TIMEOUT_SECONDS", 15),
		SessionAttempts:         GetInt("SITERIGHT_SESSION_ATTEMPTS", 5),
		SessionRetryDelay:       GetSeconds("SITERIGHT_SESSION_RETRY_SECONDS", 2),
		InferenceURL:            GetString("INFERENCE_URL", DefaultInferenceURL),
		InferenceAPIKey:         GetString("INFERENCE_API_KEY", ""),
		InferenceTimeout:        GetSeconds("INFERENCE_TIMEOUT_SECONDS", 60),
		InferenceMaxRetries:     GetInt("INFERENCE_MAX_RETRIES", 0),
		InferenceRetryDelay:     GetSeconds("INFERENCE_RETRY_SECONDS", 2),
		InferenceIncludeContext: GetBool("INFERENCE_INCLUDE_CONTEXT", false),
		RendererURL:             GetString("PDF_RENDERER_URL", ""),
		RendererTimeout:         GetSeconds("PDF_RENDERER_TIMEOUT_SECONDS", 30),
		ReportDir:               GetString("SITERIGHT_REPORT_DIR", "Documents"),
	}
}
