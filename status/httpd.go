// Package status implements the HTTP server with Prometheus metrics and a
// status page.
package status

import (
	"context"
	"fmt"
	htmltemplate "html/template"
	"log"
	"net/http"
	"time"

	"github.com/PowerDNS/simpleblob"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/taoscan/neuronsnap/config"
)

func StartHTTPServer(c config.Config) {
	if c.HTTP.Address == "" {
		logrus.Info("HTTP stats server disabled")
		return
	}
	logrus.WithField("address", c.HTTP.Address).Info("HTTP stats server enabled")
	go func() {
		err := http.ListenAndServe(c.HTTP.Address, NewHandler(c))
		logrus.Fatalf("HTTP server error: %v", err)
	}()
}

// NewHandler returns the handler for the metrics and status pages
func NewHandler(c config.Config) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", &Page{c: c})
	return mux
}

type Page struct {
	c config.Config
}

const statusTemplateString = `<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<title>neuronsnap status</title>
	<style>
		body          { font-family: sans-serif; }
		table, td, th { border: 1px solid #ccc; border-collapse: collapse; }
		td, th        { padding: 5px; text-align: left; }
		td.num        { text-align: right; }
		td.error      { background-color: #ffb8b8; }
		td.no-error   { background-color: #a6f3a6; }
		a             { text-decoration: none; color: #3c6ac5; }
	</style>
</head>
<body>
	<h1>neuronsnap status</h1>
	<p>
		Version {{ .Config.Version }} &middot;
		<a href="/metrics">Prometheus metrics</a>
	</p>

	<h2>Recent snapshots</h2>
	{{ if .Recent }}
	<table>
		<tr><th>Block</th><th>Started</th><th>Duration</th><th>Neurons</th><th>Hotkeys</th><th>Export</th><th>Status</th></tr>
		{{ range .Recent }}
		<tr>
			<td><code>{{ .BlockHash }}</code></td>
			<td>{{ .Started.Format "2006-01-02 15:04:05" }}</td>
			<td class="num">{{ .Duration }}</td>
			<td class="num">{{ .Neurons }}</td>
			<td class="num">{{ .Hotkeys }}</td>
			<td>{{ .ExportName }}</td>
			{{ if .Err }}<td class="error">{{ .Err }}</td>{{ else }}<td class="no-error">OK</td>{{ end }}
		</tr>
		{{ end }}
	</table>
	{{ else }}
	<p>No snapshots yet</p>
	{{ end }}

	<h2>Exports</h2>
	{{ if .BlobsErr }}
	<p>{{ .BlobsErr }}</p>
	{{ else }}
	<table>
		<tr><th>Name</th><th>Size</th></tr>
		{{ range .Blobs }}
		<tr><td>{{ .Name }}</td><td class="num">{{ .Size }}</td></tr>
		{{ end }}
	</table>
	{{ end }}

	<h2>Config</h2>
	<pre>{{ .Config.String }}</pre>

</body>
</html>`

var statusTemplate *htmltemplate.Template

func init() {
	var err error
	statusTemplate, err = htmltemplate.New("status").Parse(statusTemplateString)
	if err != nil {
		log.Fatalf("BUG: Error in status HTML template: %v", err)
	}
}

func (p *Page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	blobs, blobsErr := gi.ListBlobs(ctx)

	data := struct {
		Config   config.Config
		Recent   []Summary
		Blobs    simpleblob.BlobList
		BlobsErr error
	}{
		Config:   p.c,
		Recent:   gi.Recent(),
		Blobs:    blobs,
		BlobsErr: blobsErr,
	}

	err := statusTemplate.Execute(w, data)
	if err != nil {
		w.WriteHeader(500)
		_, _ = w.Write([]byte(fmt.Sprintf("Template execution error: %v", err)))
	}
}
