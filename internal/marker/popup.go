package marker

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/rickgao/fleet-tracker/internal/model"
)

var popupTemplate = template.Must(template.New("popup").Funcs(template.FuncMap{
	"speed": model.FormatSpeed,
}).Parse(`<div class="vehicle-popup" data-id="{{.ID}}">
  <h3 class="font-bold">{{.ID}}</h3>
  <p class="{{.Status.Class}}">{{.Status}}</p>
  <p>Speed: {{speed .Speed}}</p>
  <button type="button" class="popup-close" data-action="close">Close</button>
</div>
`))

// RenderPopup renders the detail popup content for snap.
func RenderPopup(snap model.Snapshot) (string, error) {
	var buf bytes.Buffer
	if err := popupTemplate.Execute(&buf, snap); err != nil {
		return "", fmt.Errorf("render popup %s: %w", snap.ID, err)
	}
	return buf.String(), nil
}
