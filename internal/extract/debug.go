package extract

import (
	"log"
	"os"
	"strings"
)

var debugEnabled = strings.EqualFold(os.Getenv("PDFRENAMER_DEBUG"), "1")

func debugLog(format string, args ...interface{}) {
	if debugEnabled {
		log.Printf(format, args...)
	}
}
