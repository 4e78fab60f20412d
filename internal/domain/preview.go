package domain

import "time"

// ContentType is the classification tag assigned to a link preview.
// Values outside the known set come straight from a page's og:type.
type ContentType string

const (
	ContentEvent         ContentType = "event"
	ContentVideo         ContentType = "video"
	ContentProduct       ContentType = "product"
	ContentRepository    ContentType = "repository"
	ContentSocial        ContentType = "social"
	ContentDocumentation ContentType = "documentation"
	ContentArticle       ContentType = "article"
	ContentWebsite       ContentType = "website"
)

// Metadata is the set of structured fields pulled out of an HTML page.
// Empty strings mean the field was not found.
type Metadata struct {
	Title           string   `json:"title,omitempty"`
	Description     string   `json:"description,omitempty"`
	ImageURL        string   `json:"image_url,omitempty"`
	SiteName        string   `json:"site_name,omitempty"`
	FaviconURL      string   `json:"favicon_url,omitempty"`
	ContentTypeHint string   `json:"content_type_hint,omitempty"`
	Lang            string   `json:"lang,omitempty"`
	Author          string   `json:"author,omitempty"`
	PublishedDate   string   `json:"published_date,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
}

// LinkPreview is the enriched record for one canonical URL of one user.
type LinkPreview struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	CanonicalURL string `json:"canonical_url"`
	OriginalURL  string `json:"original_url"`
	Domain       string `json:"domain"`

	SiteName      string      `json:"site_name,omitempty"`
	FaviconURL    string      `json:"favicon_url,omitempty"`
	Title         string      `json:"title,omitempty"`
	Description   string      `json:"description,omitempty"`
	ImageURL      string      `json:"image_url,omitempty"`
	ContentType   ContentType `json:"content_type"`
	Lang          string      `json:"lang,omitempty"`
	HTTPStatus    int         `json:"http_status,omitempty"`
	Author        string      `json:"author,omitempty"`
	PublishedDate string      `json:"published_date,omitempty"`
	Keywords      []string    `json:"keywords,omitempty"`

	// CreatedAt is set once, on insert.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt and LastCheckedAt are refreshed on every enrichment pass.
	UpdatedAt     time.Time `json:"updated_at"`
	LastCheckedAt time.Time `json:"last_checked_at"`
}

// PreviewInput carries the outcome of one enrichment pass into the preview store.
type PreviewInput struct {
	CanonicalURL string
	OriginalURL  string
	Domain       string
	Meta         Metadata
	ContentType  ContentType
	// HTTPStatus is zero when the fetch never produced a response.
	HTTPStatus int
	// Degraded marks a pass whose fetch failed. Its ContentType comes from
	// the URL alone and does not replace one already stored.
	Degraded bool
}

// Apply copies every field provided by in onto p.
// Empty values leave the existing field untouched.
func (p *LinkPreview) Apply(in PreviewInput) {
	p.OriginalURL = in.OriginalURL
	if in.Domain != "" {
		p.Domain = in.Domain
	}
	setIfPresent(&p.SiteName, in.Meta.SiteName)
	setIfPresent(&p.FaviconURL, in.Meta.FaviconURL)
	setIfPresent(&p.Title, in.Meta.Title)
	setIfPresent(&p.Description, in.Meta.Description)
	setIfPresent(&p.ImageURL, in.Meta.ImageURL)
	setIfPresent(&p.Lang, in.Meta.Lang)
	setIfPresent(&p.Author, in.Meta.Author)
	setIfPresent(&p.PublishedDate, in.Meta.PublishedDate)
	if in.ContentType != "" && (!in.Degraded || p.ContentType == "") {
		p.ContentType = in.ContentType
	}
	if in.HTTPStatus != 0 {
		p.HTTPStatus = in.HTTPStatus
	}
	if len(in.Meta.Keywords) > 0 {
		p.Keywords = append([]string(nil), in.Meta.Keywords...)
	}
}

func setIfPresent(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
