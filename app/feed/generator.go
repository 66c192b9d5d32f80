package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"time"

	"github.com/lysyi3m/khabar/app/content"
	"github.com/lysyi3m/khabar/app/database"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Run renders published blogs as an RSS 2.0 document.
func (g *Generator) Run(site SiteInfo, blogs []database.Blog) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", site.Title, 4)
	g.writeElement(&buf, "link", site.Link, 4)
	g.writeElement(&buf, "description", cmp.Or(site.Description, site.Title), 4)

	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(site.Link+"/feed.xml")))

	lastBuildDate := time.Now()
	if len(blogs) > 0 {
		lastBuildDate = g.publishedAt(blogs[0])
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Khabar/%s", site.Version), 4)
	g.writeElement(&buf, "language", site.Language, 4)

	for _, blog := range blogs {
		g.writeItem(&buf, site, blog)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, site SiteInfo, blog database.Blog) {
	link := content.CanonicalURL(site.Link, blog.Slug)

	buf.WriteString("    <item>\n")

	buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", g.isURL(link)))
	xml.EscapeText(buf, []byte(link))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", blog.Title, 6)
	g.writeElement(buf, "link", link, 6)
	g.writeElement(buf, "description", cmp.Or(blog.Summary, blog.Title), 6)

	if blog.Content != "" {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(g.escapeCDATA(blog.Content))
		buf.WriteString("]]></content:encoded>\n")
	}

	g.writeElement(buf, "pubDate", g.publishedAt(blog).Format(time.RFC1123Z), 6)
	g.writeElement(buf, "category", blog.CategoryName, 6)

	if blog.CoverImage != "" {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"0\" type=\"image/jpeg\" />\n",
			html.EscapeString(blog.CoverImage)))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) publishedAt(blog database.Blog) time.Time {
	if blog.PublishedAt != nil {
		return *blog.PublishedAt
	}
	return blog.CreatedAt
}

// escapeCDATA splits any "]]>" so the section cannot be terminated early.
func (g *Generator) escapeCDATA(s string) string {
	return string(bytes.ReplaceAll([]byte(s), []byte("]]>"), []byte("]]]]><![CDATA[>")))
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) isURL(s string) bool {
	return (len(s) > 7 && s[:7] == "http://") || (len(s) > 8 && s[:8] == "https://")
}
