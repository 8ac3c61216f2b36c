package logger

// RedactSecret masks a credential for safe logging, keeping a short prefix
// so operators can tell which key was in use.
// "sk_live_abcdef123456" → "sk_l***"
// Values of 4 chars or fewer are fully masked.
func RedactSecret(v string) string {
	if len(v) <= 4 {
		return "***"
	}
	return v[:4] + "***"
}
