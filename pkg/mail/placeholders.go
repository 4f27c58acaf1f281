package mail

import "regexp"

var placeholderPattern = regexp.MustCompile(`\$\{([^{}]+)\}`)

// Substitute replaces ${KEY} tokens in text with values[KEY]. Tokens without
// a value are left untouched.
func Substitute(text string, values map[string]string) string {
	if text == "" || len(values) == 0 {
		return text
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(tok string) string {
		key := tok[2 : len(tok)-1]
		if v, ok := values[key]; ok {
			return v
		}
		return tok
	})
}
