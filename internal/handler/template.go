package handler

import (
	"html/template"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/lynxoskar/fileServe200/internal/entry"
	"github.com/lynxoskar/fileServe200/internal/listing"
)

var listingTemplate = template.Must(template.New("listing").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Index of /{{.Path}}</title>
</head>
<body>
<h1>Index of /{{.Path}}</h1>
<table>
<thead>
<tr>
<th><a href="?sort=name&amp;order={{.Toggle "name"}}">Name</a></th>
<th><a href="?sort=size&amp;order={{.Toggle "size"}}">Size</a></th>
<th><a href="?sort=date&amp;order={{.Toggle "date"}}">Modified</a></th>
</tr>
</thead>
<tbody>
{{- if .Parent}}
<tr><td><a href="{{.Parent}}">../</a></td><td></td><td></td></tr>
{{- end}}
{{- range .Rows}}
<tr><td><a href="{{.Href}}">{{.Name}}</a></td><td>{{.Size}}</td><td>{{.Modified}}</td></tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))

type listingPage struct {
	Path   string
	Parent string
	Rows   []listingRow
	opts   listing.Options
}

type listingRow struct {
	Name     string
	Href     string
	Size     string
	Modified string
}

// Toggle returns the order a column header link asks for: the reverse of the
// current order when the column is already the sort key.
func (p listingPage) Toggle(key string) string {
	if string(p.opts.Key) == key && p.opts.Order == listing.Asc {
		return string(listing.Desc)
	}
	return string(listing.Asc)
}

func filesHref(rel string, dir bool) string {
	u := url.URL{Path: "/files/" + rel}
	href := u.EscapedPath()
	if dir && rel != "" {
		href += "/"
	}
	return href
}

func renderListing(w io.Writer, rel string, opts listing.Options, entries []entry.Entry) error {
	page := listingPage{Path: rel, opts: opts, Rows: make([]listingRow, 0, len(entries))}
	if rel != "" {
		parent := path.Dir(rel)
		if parent == "." {
			parent = ""
		}
		page.Parent = filesHref(parent, true)
	}

	for _, e := range entries {
		row := listingRow{
			Name:     e.Name(),
			Href:     filesHref(path.Join(rel, e.Name()), e.IsDir()),
			Size:     "-",
			Modified: e.ModTime().Format(time.DateTime),
		}
		if e.IsDir() {
			row.Name += "/"
		} else {
			row.Size = humanize.IBytes(uint64(e.Size()))
		}
		page.Rows = append(page.Rows, row)
	}
	return listingTemplate.Execute(w, page)
}
