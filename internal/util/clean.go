package util

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"voiceeval/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Characters that synthesis providers read aloud oddly or not at all.
var charReplacementMap = map[string]string{
	"\u00a0": " ", "\u200b": "", "\u2028": "\n", "\u2029": "\n", "\ufeff": "",
}

// CleanTranscript turns an uploaded translated text into the string sent to
// synthesis. The input must be UTF-8; a leading BOM is dropped and line endings
// are normalized.
func CleanTranscript(content []byte, src string) (string, error) {
	content = bytes.TrimPrefix(content, utf8BOM)

	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", models.ErrValidation, src)
	}

	str := strings.ReplaceAll(string(content), "\r\n", "\n")
	for bad, good := range charReplacementMap {
		str = strings.ReplaceAll(str, bad, good)
	}
	str = strings.TrimSpace(str)

	if str == "" {
		log.Warnf("%s is empty after cleaning", src)
		return "", fmt.Errorf("%w: %s is empty", models.ErrValidation, src)
	}
	return str, nil
}
