package report

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"fieldserve/internal/model"
)

// MediaStore fetches attached image bytes. It is an external collaborator;
// any failure for one image must never abort the whole document.
type MediaStore interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Document is a fixed-layout printable snapshot of one request.
type Document struct {
	Title       string    `json:"title"`
	RecordID    string    `json:"recordId"`
	GeneratedAt time.Time `json:"generatedAt"`
	Sections    []Section `json:"sections"`
	Footer      string    `json:"footer"`
}

// Section is a heading with either labelled rows or image slots.
type Section struct {
	Heading string      `json:"heading"`
	Rows    []Row       `json:"rows,omitempty"`
	Images  []ImageSlot `json:"images,omitempty"`
}

type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ImageSlot carries either the fetched bytes or a placeholder line.
type ImageSlot struct {
	Caption     string `json:"caption,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Data        []byte `json:"data,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

// Compositor renders documents from already-validated, already-fetched
// records. It re-checks no business rules.
type Compositor struct {
	media MediaStore
	// perImageTimeout bounds each individual media fetch.
	perImageTimeout time.Duration
}

func NewCompositor(media MediaStore, perImageTimeout time.Duration) *Compositor {
	if perImageTimeout <= 0 {
		perImageTimeout = 10 * time.Second
	}
	return &Compositor{media: media, perImageTimeout: perImageTimeout}
}

// Compose builds the document for rec. The optional task contributes the
// technician pay terms and deliverables to the admin section.
func (c *Compositor) Compose(ctx context.Context, rec model.Request, task *model.Task) (*Document, error) {
	now := time.Now()
	doc := &Document{
		Title:       "Service Request Report",
		RecordID:    rec.ID,
		GeneratedAt: now,
		Footer:      fmt.Sprintf("Generated %s for record %s", now.Format(time.RFC3339), rec.ID),
	}

	doc.Sections = append(doc.Sections, Section{
		Heading: "Client/Request Information",
		Rows: []Row{
			{"Technician Title", rec.TechnicianTitle},
			{"Service", rec.ServiceID},
			{"Location", rec.Location},
			{"Contact No", rec.ContactNo},
			{"Pay Type", string(rec.PayType)},
			{"Rate", fmt.Sprintf("%.2f", rec.Rate)},
			{"Pickup Location", rec.PickupLocation},
			{"Description", rec.Description},
		},
	})

	if len(rec.Images) > 0 {
		doc.Sections = append(doc.Sections, Section{
			Heading: "Images",
			Images:  c.fetchImages(ctx, rec.Images),
		})
	}

	admin := Section{
		Heading: "Admin Settings",
		Rows: []Row{
			{"Start Date", rec.StartDate},
			{"Start Time", rec.StartTime},
			{"End Date", deref(rec.EndDate)},
			{"Special Tools", rec.SpecialTools},
			{"Admin Pay Type", payTypeValue(rec.AdminPayType)},
			{"Admin Rate", rateValue(rec.AdminRate)},
			{"Deliverables", deref(rec.Deliverables)},
			{"Delivery Instructions", rec.DeliveryInstructions},
		},
	}
	if task != nil {
		admin.Rows = append(admin.Rows,
			Row{"Technician Pay Type", string(task.TechnicianPayType)},
			Row{"Technician Rate", fmt.Sprintf("%.2f", task.TechnicianRate)},
			Row{"Technician Deliverables", deref(task.Deliverables)},
		)
	}
	doc.Sections = append(doc.Sections, admin)

	return doc, nil
}

// fetchImages retrieves every image concurrently. Each slot gets its own
// timeout; a failed or undecodable image becomes a placeholder line.
func (c *Compositor) fetchImages(ctx context.Context, images []model.Image) []ImageSlot {
	slots := make([]ImageSlot, len(images))
	var wg sync.WaitGroup
	for i, img := range images {
		wg.Add(1)
		go func(i int, img model.Image) {
			defer wg.Done()
			slots[i] = c.fetchOne(ctx, i, img)
		}(i, img)
	}
	wg.Wait()
	return slots
}

func (c *Compositor) fetchOne(ctx context.Context, i int, img model.Image) ImageSlot {
	slot := ImageSlot{Caption: img.Caption}
	fctx, cancel := context.WithTimeout(ctx, c.perImageTimeout)
	defer cancel()

	data, err := c.media.Fetch(fctx, img.Ref)
	if err != nil || len(data) == 0 {
		slot.Placeholder = placeholderLine(i)
		return slot
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		slot.Placeholder = placeholderLine(i)
		return slot
	}
	slot.ContentType = contentType
	slot.Data = data
	return slot
}

func placeholderLine(i int) string {
	return fmt.Sprintf("Image %d could not be loaded", i+1)
}

// Render emits the plain-text form of the document for export.
func (d *Document) Render() string {
	var b strings.Builder
	b.WriteString(d.Title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", len(d.Title)))
	b.WriteString("\n\n")
	for _, s := range d.Sections {
		b.WriteString(s.Heading)
		b.WriteString("\n")
		b.WriteString(strings.Repeat("-", len(s.Heading)))
		b.WriteString("\n")
		for _, r := range s.Rows {
			fmt.Fprintf(&b, "%-24s %s\n", r.Label+":", r.Value)
		}
		for i, img := range s.Images {
			if img.Placeholder != "" {
				b.WriteString(img.Placeholder)
				b.WriteString("\n")
				continue
			}
			fmt.Fprintf(&b, "Image %d (%s, %d bytes)", i+1, img.ContentType, len(img.Data))
			if img.Caption != "" {
				fmt.Fprintf(&b, " - %s", img.Caption)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(d.Footer)
	b.WriteString("\n")
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func payTypeValue(p *model.PayType) string {
	if p == nil {
		return ""
	}
	return string(*p)
}

func rateValue(r *float64) string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *r)
}
