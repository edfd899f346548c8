package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	texttemplate "text/template"
	"time"

	"tenantkit/internal/i18n"
	"tenantkit/internal/types"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

// Template variable keys carried in EmailMessage.Variables.
const (
	VarInviterName       = "inviterName"
	VarOrgName           = "orgName"
	VarRole              = "role"
	VarAcceptURL         = "acceptUrl"
	VarExpiresAt         = "expiresAt" // RFC 3339
	VarPreviousOwnerName = "previousOwnerName"
	VarOrgURL            = "orgUrl"
)

// RenderedEmail holds the rendered content ready for a provider.
type RenderedEmail struct {
	Subject  string
	BodyHTML string
	BodyText string
}

// templateData is what every template sees. All strings are already
// translated for the recipient's locale.
type templateData struct {
	Lang      string
	Subject   string
	Heading   string
	Body      string
	Action    string
	ActionURL string
	Note      string
	Footer    string
}

// Renderer turns a template-addressed EmailMessage into translated HTML and
// plaintext bodies using the embedded templates.
type Renderer struct {
	tr            *i18n.Translator
	from          types.SenderIdentity
	htmlTemplates map[types.EmailTemplate]*template.Template
	textTemplates map[types.EmailTemplate]*texttemplate.Template
}

var knownTemplates = []types.EmailTemplate{
	types.TemplateInvitation,
	types.TemplateOwnershipTransferred,
}

// NewRenderer parses the embedded templates. It fails if any template is
// missing or malformed.
func NewRenderer(tr *i18n.Translator, from types.SenderIdentity) (*Renderer, error) {
	r := &Renderer{
		tr:            tr,
		from:          from,
		htmlTemplates: make(map[types.EmailTemplate]*template.Template),
		textTemplates: make(map[types.EmailTemplate]*texttemplate.Template),
	}

	baseHTML, err := templateFS.ReadFile("templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to read base.html: %w", err)
	}

	for _, tmpl := range knownTemplates {
		name := string(tmpl)

		htmlContent, err := templateFS.ReadFile(fmt.Sprintf("templates/%s.html", name))
		if err != nil {
			return nil, fmt.Errorf("renderer: failed to read %s.html: %w", name, err)
		}
		htmlTmpl, err := template.New("base").Parse(string(baseHTML))
		if err != nil {
			return nil, fmt.Errorf("renderer: failed to parse base.html: %w", err)
		}
		if _, err := htmlTmpl.Parse(string(htmlContent)); err != nil {
			return nil, fmt.Errorf("renderer: failed to parse %s.html: %w", name, err)
		}
		r.htmlTemplates[tmpl] = htmlTmpl

		txtContent, err := templateFS.ReadFile(fmt.Sprintf("templates/%s.txt", name))
		if err != nil {
			return nil, fmt.Errorf("renderer: failed to read %s.txt: %w", name, err)
		}
		txtTmpl, err := texttemplate.New(name).Parse(string(txtContent))
		if err != nil {
			return nil, fmt.Errorf("renderer: failed to parse %s.txt: %w", name, err)
		}
		r.textTemplates[tmpl] = txtTmpl
	}

	return r, nil
}

// Sender returns the configured From identity.
func (r *Renderer) Sender() types.SenderIdentity { return r.from }

// Render produces the subject and both bodies for msg in msg.Locale.
func (r *Renderer) Render(msg types.EmailMessage) (*RenderedEmail, error) {
	htmlTmpl, ok := r.htmlTemplates[msg.Template]
	if !ok {
		return nil, fmt.Errorf("renderer: no HTML template for %q", msg.Template)
	}
	txtTmpl := r.textTemplates[msg.Template]

	data := r.buildTemplateData(msg)

	var htmlBuf bytes.Buffer
	if err := htmlTmpl.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("renderer: failed to render HTML for %q: %w", msg.Template, err)
	}
	var txtBuf bytes.Buffer
	if err := txtTmpl.Execute(&txtBuf, data); err != nil {
		return nil, fmt.Errorf("renderer: failed to render text for %q: %w", msg.Template, err)
	}

	return &RenderedEmail{
		Subject:  data.Subject,
		BodyHTML: htmlBuf.String(),
		BodyText: txtBuf.String(),
	}, nil
}

func (r *Renderer) buildTemplateData(msg types.EmailMessage) templateData {
	locale := i18n.Normalize(msg.Locale)
	v := msg.Variables
	org := v[VarOrgName]

	data := templateData{
		Lang:   locale,
		Footer: r.tr.T(locale, "email.footer"),
	}

	switch msg.Template {
	case types.TemplateInvitation:
		role := r.tr.T(locale, "roles."+v[VarRole])
		data.Subject = r.tr.T(locale, "email.invitation.subject", org)
		data.Heading = r.tr.T(locale, "email.invitation.heading", org)
		data.Body = r.tr.T(locale, "email.invitation.body", v[VarInviterName], org, role)
		data.Action = r.tr.T(locale, "email.invitation.cta")
		data.ActionURL = v[VarAcceptURL]
		if exp, err := time.Parse(time.RFC3339, v[VarExpiresAt]); err == nil {
			data.Note = r.tr.T(locale, "email.invitation.expiry", r.tr.FormatDate(locale, exp))
		}
	case types.TemplateOwnershipTransferred:
		data.Subject = r.tr.T(locale, "email.ownershipTransferred.subject", org)
		data.Heading = r.tr.T(locale, "email.ownershipTransferred.heading")
		data.Body = r.tr.T(locale, "email.ownershipTransferred.body", v[VarPreviousOwnerName], org)
		data.Action = r.tr.T(locale, "email.ownershipTransferred.cta", org)
		data.ActionURL = v[VarOrgURL]
	}
	return data
}
