package monitor

import (
	"fmt"
	"html"
)

// pageTemplate is the viewer served to plain HTTP requests. The embedded
// script re-renders the <pre> block from every pushed text frame.
const pageTemplate = `<html>
<head>
  <meta charset="UTF-8">
  <title>File Monitor</title>
  <style>
    body { margin: 0; padding: 0; display: flex; align-items: center; justify-content: center; height: 100vh; background-color: #f7f7f7; font-family: Arial, sans-serif; }
    .container { width: 80%%; max-width: 800px; text-align: center; }
    pre { background: #eee; padding: 20px; border: 1px solid #ccc; overflow: auto; text-align: left; }
  </style>
</head>
<body>
  <div class="container">
    <h1>File Monitor</h1>
    <pre id="content">%s</pre>
  </div>
  <script>
    const ws = new WebSocket('ws://' + location.host);
    ws.onmessage = e => document.getElementById('content').textContent = e.data;
  </script>
</body>
</html>
`

// Page renders a complete HTTP response carrying the viewer with the
// current file content inlined.
func Page(content []byte) []byte {
	body := fmt.Sprintf(pageTemplate, html.EscapeString(string(content)))
	header := fmt.Sprintf(
		"HTTP/1.1 200 OK\r\nContent-Type: text/html\r\nContent-Length: %d\r\nConnection: close\r\n\r\n",
		len(body),
	)
	return append([]byte(header), body...)
}
