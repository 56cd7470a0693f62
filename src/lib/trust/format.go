package trust

import (
	"bytes"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
)

const subsystemField = "subsystem"
const statsField = "stats"
const fatalField = "exit"

// prefixFormatter prints "LEVEL:[subsystem] message key=value".
type prefixFormatter struct{}

func (f *prefixFormatter) Format(e *log.Entry) ([]byte, error) {
	var b bytes.Buffer
	_, fatal := e.Data[fatalField]
	switch {
	case fatal:
		b.WriteString("FATAL:")
	case e.Level == log.ErrorLevel:
		b.WriteString("ERROR:")
	case e.Level == log.WarnLevel:
		b.WriteString(" WARN:")
	case e.Level == log.InfoLevel:
		b.WriteString(" INFO:")
	case e.Level == log.DebugLevel:
		b.WriteString("DEBUG:")
	default:
		fmt.Fprintf(&b, "STATS[%v]:", e.Data[statsField])
	}
	if s, ok := e.Data[subsystemField]; ok {
		fmt.Fprintf(&b, "[%v] ", s)
	}
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		switch k {
		case subsystemField, statsField, fatalField:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	if b.Len() == 0 || b.Bytes()[b.Len()-1] != '\n' {
		b.WriteByte('\n')
	}
	return b.Bytes(), nil
}
