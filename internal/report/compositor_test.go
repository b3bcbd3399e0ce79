package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fieldserve/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n" + strings.Repeat("x", 64))

type fakeMedia struct {
	blobs map[string][]byte
}

func (f *fakeMedia) Fetch(_ context.Context, ref string) ([]byte, error) {
	data, ok := f.blobs[ref]
	if !ok {
		return nil, errors.New("blob missing")
	}
	return data, nil
}

func sampleRequest() model.Request {
	return model.Request{
		ID:              "01J0TESTREQUEST000000000",
		TechnicianTitle: "Plumber",
		ServiceID:       "plumbing",
		Location:        "12 High St",
		ContactNo:       "+12345678901",
		PayType:         model.PayFlat,
		Rate:            120,
		Description:     "Kitchen sink leaking under the basin, needs resealing.",
		Status:          model.StatusPending,
	}
}

func TestCompose_SectionsAndFooter(t *testing.T) {
	c := NewCompositor(&fakeMedia{}, time.Second)
	doc, err := c.Compose(context.Background(), sampleRequest(), nil)
	require.NoError(t, err)

	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "Client/Request Information", doc.Sections[0].Heading)
	assert.Equal(t, "Admin Settings", doc.Sections[1].Heading)
	assert.Contains(t, doc.Footer, doc.RecordID)
}

func TestCompose_ImageFailureBecomesPlaceholder(t *testing.T) {
	media := &fakeMedia{blobs: map[string][]byte{
		"img-1": pngBytes,
		"img-3": pngBytes,
	}}
	rec := sampleRequest()
	rec.Images = []model.Image{
		{ID: "a", Ref: "img-1"},
		{ID: "b", Ref: "img-2"},
		{ID: "c", Ref: "img-3", Caption: "after repair"},
	}

	c := NewCompositor(media, time.Second)
	doc, err := c.Compose(context.Background(), rec, nil)
	require.NoError(t, err)

	require.Len(t, doc.Sections, 3)
	images := doc.Sections[1]
	require.Equal(t, "Images", images.Heading)
	require.Len(t, images.Images, 3)

	assert.Equal(t, "image/png", images.Images[0].ContentType)
	assert.NotEmpty(t, images.Images[0].Data)
	assert.Equal(t, "Image 2 could not be loaded", images.Images[1].Placeholder)
	assert.Empty(t, images.Images[1].Data)
	assert.Equal(t, "image/png", images.Images[2].ContentType)
	assert.Equal(t, "after repair", images.Images[2].Caption)
}

func TestCompose_NonImageBytesRejected(t *testing.T) {
	media := &fakeMedia{blobs: map[string][]byte{
		"img-1": []byte("%PDF-1.7 definitely not an image"),
	}}
	rec := sampleRequest()
	rec.Images = []model.Image{{ID: "a", Ref: "img-1"}}

	c := NewCompositor(media, time.Second)
	doc, err := c.Compose(context.Background(), rec, nil)
	require.NoError(t, err)

	require.Len(t, doc.Sections, 3)
	slot := doc.Sections[1].Images[0]
	assert.Equal(t, "Image 1 could not be loaded", slot.Placeholder)
	assert.Empty(t, slot.Data)
}

func TestCompose_TaskRowsAppended(t *testing.T) {
	deliverables := "Replaced trap and resealed joints"
	task := &model.Task{
		TechnicianPayType: model.PayHourly,
		TechnicianRate:    45,
		Deliverables:      &deliverables,
	}

	c := NewCompositor(&fakeMedia{}, time.Second)
	doc, err := c.Compose(context.Background(), sampleRequest(), task)
	require.NoError(t, err)

	admin := doc.Sections[len(doc.Sections)-1]
	last := admin.Rows[len(admin.Rows)-1]
	assert.Equal(t, "Technician Deliverables", last.Label)
	assert.Equal(t, deliverables, last.Value)
}

func TestRender_PlainText(t *testing.T) {
	media := &fakeMedia{blobs: map[string][]byte{"img-1": pngBytes}}
	rec := sampleRequest()
	rec.Images = []model.Image{
		{ID: "a", Ref: "img-1"},
		{ID: "b", Ref: "img-missing"},
	}

	c := NewCompositor(media, time.Second)
	doc, err := c.Compose(context.Background(), rec, nil)
	require.NoError(t, err)

	text := doc.Render()
	assert.Contains(t, text, "Service Request Report")
	assert.Contains(t, text, "Client/Request Information")
	assert.Contains(t, text, "Image 1 (image/png")
	assert.Contains(t, text, "Image 2 could not be loaded")
	assert.Contains(t, text, doc.Footer)
}
