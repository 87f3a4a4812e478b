package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const widgetSchema = `{
  "type": "object",
  "required": ["stock-search"],
  "properties": {
    "stock-search": {"type": "string", "format": "uri", "pattern": "^https?://"}
  }
}`

// WidgetConfig is the configuration bundled with the search widget.
type WidgetConfig struct {
	StockSearch string `json:"stock-search"`
}

// ParseWidgetConfig validates raw JSON against the widget schema before
// decoding it, so a missing or malformed endpoint fails at startup.
func ParseWidgetConfig(data []byte) (WidgetConfig, error) {
	var cfg WidgetConfig

	res, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(widgetSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return cfg, fmt.Errorf("widget config: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return cfg, ErrInvalid("widget config: " + strings.Join(msgs, "; "))
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("widget config: %w", err)
	}
	return cfg, nil
}

func LoadWidgetConfig(path string) (WidgetConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WidgetConfig{}, fmt.Errorf("could not read %s: %w", path, err)
	}
	return ParseWidgetConfig(data)
}
