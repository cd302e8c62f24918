package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/atinyakov/PicTag/internal/config"
)

// ConfigHandler reports which required settings are present, without
// revealing their values.
type ConfigHandler struct {
	Report func() []config.Check
}

// TestConfig writes one "NAME: SET|MISSING" line per setting.
func (h *ConfigHandler) TestConfig(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	for _, c := range h.Report() {
		state := "MISSING"
		if c.Set {
			state = "SET"
		}
		fmt.Fprintf(&b, "%s: %s\n", c.Name, state)
	}
	writeText(w, http.StatusOK, b.String())
}
