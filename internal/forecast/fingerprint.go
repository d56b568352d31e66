package forecast

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Fingerprint identifies a forecast request: the prepared series, the horizon and every
// model setting. Equal fingerprints yield equal results.
func Fingerprint(series Series, horizon int, cfg Config) string {
	h := sha256.New()
	for _, p := range series.Points {
		fmt.Fprintf(h, "%s=%s;", p.Period, strconv.FormatFloat(p.Value, 'g', -1, 64))
	}
	fmt.Fprintf(h, "|h=%d|%+v", cfg.ResolveHorizon(horizon), cfg)
	return hex.EncodeToString(h.Sum(nil))
}
