package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

var (
	oracleMu   sync.Mutex
	oracleLog  *log.Logger
	oracleDump bool
)

// SetOracleWriter routes raw oracle exchanges to w. A nil writer disables them.
func SetOracleWriter(w io.Writer) {
	oracleMu.Lock()
	defer oracleMu.Unlock()
	if w == nil {
		oracleLog = nil
		return
	}
	oracleLog = log.New(w, "", log.LstdFlags)
}

// EnableOracleDump toggles writing of full prompts in addition to responses.
func EnableOracleDump(enabled bool) {
	oracleMu.Lock()
	oracleDump = enabled
	oracleMu.Unlock()
}

// LogOracleExchange writes one prompt/response pair for the given asset.
func LogOracleExchange(oracle, assetID, prompt, response string) {
	oracleMu.Lock()
	l, dump := oracleLog, oracleDump
	oracleMu.Unlock()
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[ORACLE][" + oracle + "][" + assetID + "]\n")
	if dump && strings.TrimSpace(prompt) != "" {
		b.WriteString("--- PROMPT ---\n")
		b.WriteString(strings.TrimRight(prompt, "\n"))
		b.WriteString("\n")
	}
	b.WriteString("--- RESPONSE ---\n")
	b.WriteString(strings.TrimRight(response, "\n"))
	b.WriteString("\n=====\n")
	l.Print(b.String())
}
