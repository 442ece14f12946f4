package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalogYAML = `
templates:
  - name: appointment-reminder
    subject: "Reminder: your visit on {date:-soon}"
    html: "<p>Hello {{.name}}, see you on {{.date}}.</p>"
  - name: recall
    subject: "{!clinic} misses you"
    html: "<p>{{.body | safeHTML}}</p>"
`

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog([]byte(testCatalogYAML))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"appointment-reminder", "recall"}, c.Names())
}

func TestRenderInterpolation(t *testing.T) {
	c, err := LoadCatalog([]byte(testCatalogYAML))
	require.NoError(t, err)

	r, err := c.Render("appointment-reminder", map[string]any{
		"name": "Amina",
		"date": "2026-09-03",
	})
	require.NoError(t, err)
	assert.Equal(t, "Reminder: your visit on 2026-09-03", r.Subject)
	assert.Equal(t, "<p>Hello Amina, see you on 2026-09-03.</p>", r.HTML)
}

func TestRenderSubjectDefault(t *testing.T) {
	c, err := LoadCatalog([]byte(testCatalogYAML))
	require.NoError(t, err)

	r, err := c.Render("appointment-reminder", map[string]any{"name": "Amina"})
	require.NoError(t, err)
	assert.Equal(t, "Reminder: your visit on soon", r.Subject)
}

func TestRenderRequiredValueMissing(t *testing.T) {
	c, err := LoadCatalog([]byte(testCatalogYAML))
	require.NoError(t, err)

	_, err = c.Render("recall", map[string]any{"body": "<b>hi</b>"})
	assert.ErrorContains(t, err, "required value not found for key 'clinic'")
}

func TestRenderSafeHTML(t *testing.T) {
	c, err := LoadCatalog([]byte(testCatalogYAML))
	require.NoError(t, err)

	r, err := c.Render("recall", map[string]any{
		"clinic": "Smile Dental",
		"body":   "<b>book now</b>",
	})
	require.NoError(t, err)
	assert.Equal(t, "Smile Dental misses you", r.Subject)
	assert.Equal(t, "<p><b>book now</b></p>", r.HTML)
}

func TestRenderEscapesByDefault(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(&Template{
		Name:    "plain",
		Subject: "s",
		HTML:    "<p>{{.body}}</p>",
	}))
	r, err := c.Render("plain", map[string]any{"body": "<script>x</script>"})
	require.NoError(t, err)
	assert.NotContains(t, r.HTML, "<script>")
}

func TestRenderUnknownTemplate(t *testing.T) {
	c := NewCatalog()
	_, err := c.Render("nope", nil)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestRegisterInvalidTemplate(t *testing.T) {
	c := NewCatalog()
	assert.Error(t, c.Register(&Template{Name: "broken", HTML: "{{.unclosed"}))
	assert.Error(t, c.Register(&Template{Subject: "no name"}))
}
