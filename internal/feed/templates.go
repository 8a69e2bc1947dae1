package feed

import "html/template"

var descriptionTemplate = template.Must(template.New("description").Parse(
	`<div>` +
		`{{if .ThumbURL}}<img src="{{.ThumbURL}}" alt="{{.Name}}" width="300px" height="300px" />{{end}}` +
		`<h3>By {{.ArtistCredit}}</h3>` +
		`{{if .Links}}<div><h4>Available at: </h4><ul>` +
		`{{range .Links}}<li>{{.Label}}: <a href="{{.URL}}" target="_blank" rel="noreferrer noopener">{{.URL}}</a></li>{{end}}` +
		`</ul></div>{{end}}` +
		`</div>`))

var contentTemplate = template.Must(template.New("content").Parse(
	`<div>` +
		`<h1><a href="{{.Permalink}}" rel="noreferrer noopener">{{.Name}}</a> </h1>` +
		`{{if eq (len .ArtistURLs) 1}}` +
		`<h3>By <a href="{{index .ArtistURLs 0}}" rel="noreferrer noopener">{{.ArtistCredit}}</a></h3>` +
		`{{else}}` +
		`<h3>By {{.ArtistCredit}}</h3>` +
		`<div><ul>{{range .ArtistURLs}}<li><a href="{{.}}" rel="noreferrer noopener">{{.}}</a></li>{{end}}</ul></div>` +
		`{{end}}` +
		`{{if .FullURL}}<div><img src="{{.FullURL}}" alt="{{.Name}}" width="500px" height="500px" /></div>{{end}}` +
		`</div>`))

type linkView struct {
	Label string
	URL   string
}

type itemView struct {
	Name         string
	ArtistCredit string
	Permalink    string
	ThumbURL     string
	FullURL      string
	ArtistURLs   []string
	Links        []linkView
}
