package slog

import (
	"bytes"
	"encoding/json"
	"errors"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/arcache"
)

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(stdslog.New(stdslog.NewJSONHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo})))

	l.Debug("dropped", arcache.Fields{"x": 1})
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered: %s", buf.String())
	}

	l.Warn("prior invalidation unreadable", arcache.Fields{"group": "g", "err": errors.New("boom")})
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if rec["level"] != "WARN" || rec["group"] != "g" || rec["err"] != "boom" || rec["component"] != "arcache" {
		t.Fatalf("record = %v", rec)
	}

	buf.Reset()
	l.Info("ordered", arcache.Fields{"b": 1, "a": 2})
	if out := buf.String(); strings.Index(out, `"a"`) > strings.Index(out, `"b"`) {
		t.Fatalf("attrs not sorted: %s", out)
	}
}
