package room

import (
	"fmt"
	"html"
	"strings"

	domain "github.com/example/codehuddle/domain/room"
)

const cssSampleBody = `<div class="container">
  <h1>CSS Preview</h1>
  <p>This is a paragraph to preview your styles.</p>
  <button>Button</button>
  <div class="box">Box element</div>
</div>`

// consoleCapture mirrors console output into the page so it is visible in the preview frame.
const consoleCapture = `(function () {
  var out = document.getElementById('console');
  ['log', 'info', 'warn', 'error'].forEach(function (level) {
    var original = console[level];
    console[level] = function () {
      var line = document.createElement('div');
      line.className = level;
      line.textContent = Array.prototype.map.call(arguments, function (a) {
        return typeof a === 'object' ? JSON.stringify(a) : String(a);
      }).join(' ');
      out.appendChild(line);
      original.apply(console, arguments);
    };
  });
  window.addEventListener('error', function (e) { console.error(e.message); });
})();`

// BuildPreview renders code of the given language as a standalone HTML document.
// The document is meant for a sandboxed frame and is never evaluated server-side.
func BuildPreview(language, code string) string {
	switch language {
	case domain.LanguageHTML:
		return code
	case domain.LanguageCSS:
		return document("CSS Preview", "<style>\n"+escapeRawText(code, "style")+"\n</style>", cssSampleBody)
	case domain.LanguageJavaScript:
		body := "<div id=\"console\"></div>\n" +
			"<script>\n" + consoleCapture + "\n</script>\n" +
			"<script>\n" + escapeRawText(code, "script") + "\n</script>"
		return document("JavaScript Preview", "", body)
	default:
		body := fmt.Sprintf("<p>Preview not available for %s.</p>", html.EscapeString(language))
		return document("Preview", "", body)
	}
}

func document(title, head, body string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title>\n")
	if head != "" {
		b.WriteString(head)
		b.WriteString("\n")
	}
	b.WriteString("</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}

// escapeRawText keeps user code from closing its enclosing raw text element early.
func escapeRawText(code, element string) string {
	closing := "</" + element
	var b strings.Builder
	lower := strings.ToLower(code)
	for {
		i := strings.Index(lower, closing)
		if i < 0 {
			b.WriteString(code)
			return b.String()
		}
		b.WriteString(code[:i])
		b.WriteString(`<\/`)
		code = code[i+2:]
		lower = lower[i+2:]
	}
}
