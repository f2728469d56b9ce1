package secrets

// DefaultRules returns the rules for credentials this service handles or
// is likely to see echoed back in an upstream error body.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "huggingface-token",
			Description: "Hugging Face access token",
			Pattern:     `\bhf_[A-Za-z0-9]{20,}`,
		},
		{
			ID:          "openrouter-key",
			Description: "OpenRouter API key",
			Pattern:     `\bsk-or-(?:v1-)?[A-Za-z0-9]{20,}`,
		},
		{
			ID:          "openai-key",
			Description: "OpenAI-style API key",
			Pattern:     `\bsk-(?:proj-)?[A-Za-z0-9_\-]{20,}`,
		},
		{
			ID:          "bearer-token",
			Description: "Authorization bearer token",
			Pattern:     `(?i)bearer\s+[A-Za-z0-9._~+/\-]+=*`,
			Keywords:    []string{"bearer"},
		},
		{
			ID:          "generic-api-key",
			Description: "Generic API key assignment",
			Pattern:     `(?i)(?:api[_-]?key|apikey)["']?\s*[:=]\s*['"]?[A-Za-z0-9_\-]{16,64}['"]?`,
			Keywords:    []string{"key"},
		},
		{
			ID:          "jwt",
			Description: "JSON Web Token",
			Pattern:     `\beyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`,
		},
		{
			ID:          "private-key",
			Description: "Private key block",
			Pattern:     `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?:[- ]BLOCK)?-----`,
		},
	}
}
