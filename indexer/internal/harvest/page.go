package harvest

import (
	"context"
	"io"
	"strings"

	"github.com/hazyhaar/dblpfeeds/indexer/internal/event"
)

// Page is what the harvester needs from one ListRecords response.
type Page struct {
	// Token is the resumption token, empty on the last page.
	Token string
	// Err is set when the response is an OAI <error>.
	Err *OAIError
}

// ParsePage streams a ListRecords response and extracts the resumption
// token or the OAI error.
func ParsePage(ctx context.Context, r io.Reader) (Page, error) {
	var (
		page Page
		in   string
		text strings.Builder
	)
	err := event.Stream(ctx, r, event.HandlerFunc(func(_ context.Context, ev event.Event) error {
		switch ev.Kind {
		case event.Start:
			switch ev.Name {
			case "resumptionToken":
				in = ev.Name
				text.Reset()
			case "error":
				in = ev.Name
				text.Reset()
				page.Err = &OAIError{Code: ev.Attrs["code"]}
			}
		case event.Text:
			if in != "" {
				text.WriteString(ev.Text)
			}
		case event.End:
			if ev.Name != in {
				return nil
			}
			switch in {
			case "resumptionToken":
				page.Token = strings.TrimSpace(text.String())
			case "error":
				page.Err.Message = strings.TrimSpace(text.String())
			}
			in = ""
		}
		return nil
	}), event.WithoutGzip())
	return page, err
}
