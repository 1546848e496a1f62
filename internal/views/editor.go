package views

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// EditorData feeds the editor shell.
type EditorData struct {
	WebsiteID string
	Name      string
	// Socket is the websocket path of the editing session.
	Socket string
}

type editorConfig struct {
	WebsiteID string `json:"websiteId"`
	Socket    string `json:"socket"`
}

// hostJS relays between the sandboxed frame and the editing session: frame
// messages go up the socket, session events drive the frame and the panel.
const hostJS = `
(function () {
  var cfg = JSON.parse(document.getElementById("wg-config").textContent);
  var frame = document.getElementById("wg-frame");
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + cfg.socket);
  var pendingSeq = 0;

  function $(id) { return document.getElementById(id); }
  function send(msg) { if (ws.readyState === 1) ws.send(JSON.stringify(msg)); }

  frame.addEventListener("load", function () {
    if (pendingSeq) { send({type: "loaded", seq: pendingSeq}); pendingSeq = 0; }
  });

  window.addEventListener("message", function (e) {
    if (e.source !== frame.contentWindow || !e.data || e.data.source !== "webgen") return;
    send(e.data);
  });

  function fill(s) {
    if (!s) return;
    $("wg-tag").textContent = s.tag;
    $("wg-text").value = s.text || "";
    $("wg-color").value = s.color || "#000000";
    $("wg-bg").value = s.backgroundColor || "#ffffff";
    $("wg-size").value = s.fontSize || 16;
    $("wg-image-row").hidden = s.tag !== "img";
    $("wg-link-row").hidden = s.tag !== "a";
    $("wg-image").value = s.src || "";
    $("wg-link").value = s.href || "";
  }

  function toast(n) {
    if (!n) return;
    var el = document.createElement("div");
    el.className = "wg-toast wg-toast-" + n.level;
    el.textContent = n.message;
    if (n.kind === "upgrade") {
      var a = document.createElement("a");
      a.href = "/subscription";
      a.textContent = " Upgrade";
      el.appendChild(a);
    }
    $("wg-toasts").appendChild(el);
    setTimeout(function () { el.remove(); }, 4000);
  }

  ws.onmessage = function (e) {
    var ev;
    try { ev = JSON.parse(e.data); } catch (_) { return; }
    switch (ev.type) {
    case "document":
      pendingSeq = ev.html ? ev.seq : 0;
      frame.srcdoc = ev.html || "";
      break;
    case "state":
      $("wg-state").textContent = ev.state;
      $("wg-loading").hidden = ev.state !== "loading";
      $("wg-error").hidden = ev.state !== "error";
      $("wg-error-msg").textContent = ev.error || "";
      break;
    case "snapshot":
      fill(ev.snapshot);
      break;
    case "edit":
      fill(ev.snapshot);
      $("wg-props").hidden = false;
      break;
    case "selection_cleared":
      $("wg-props").hidden = true;
      frame.contentWindow.postMessage({source: "webgen-host", type: "deselect"}, "*");
      break;
    case "toast":
      toast(ev.notification);
      break;
    case "confirm":
      send({type: "confirm_reply", id: ev.id, ok: window.confirm(ev.prompt)});
      break;
    case "website":
      $("wg-name").value = ev.name || "";
      $("wg-slug").textContent = ev.slug ? "/site/" + ev.slug : "";
      $("wg-live").hidden = !ev.published;
      break;
    case "raw_source":
      $("wg-code").value = ev.html || "";
      break;
    }
  };

  function on(id, fn) { $(id).addEventListener("click", fn); }
  on("wg-apply-text", function () { send({type: "update_text", value: $("wg-text").value}); });
  on("wg-apply-color", function () { send({type: "update_style", property: "color", value: $("wg-color").value}); });
  on("wg-apply-bg", function () { send({type: "update_style", property: "backgroundColor", value: $("wg-bg").value}); });
  on("wg-apply-size", function () { send({type: "update_style", property: "fontSize", value: $("wg-size").value}); });
  on("wg-apply-image", function () { send({type: "update_image", value: $("wg-image").value}); });
  on("wg-apply-link", function () { send({type: "update_link", value: $("wg-link").value}); });
  on("wg-deselect", function () { send({type: "deselect"}); });
  on("wg-rename", function () { send({type: "rename", name: $("wg-name").value}); });
  on("wg-save", function () { send({type: "save"}); });
  on("wg-publish", function () { send({type: "publish"}); });
  on("wg-set-domain", function () { send({type: "set_domain", domain: $("wg-domain").value}); });
  on("wg-verify-domain", function () { send({type: "verify_domain", domain: $("wg-domain").value}); });
  on("wg-reload-raw", function () { send({type: "reload_raw", html: $("wg-code").value}); });
  on("wg-retry", function () { send({type: "retry"}); });
})();
`

const editorCSS = `
.wg-editor{display:grid;grid-template-columns:1fr 20rem;gap:1rem;padding:1rem}
.wg-editor iframe{width:100%;height:80vh;border:1px solid #cbd5e1;border-radius:.5rem;background:#fff}
.wg-side label{display:block;font-size:.8rem;margin-top:.6rem}
.wg-side input,.wg-side textarea{width:100%;box-sizing:border-box}
.wg-toasts{position:fixed;right:1rem;bottom:1rem;display:flex;flex-direction:column;gap:.5rem}
.wg-toast{padding:.6rem 1rem;border-radius:.375rem;color:#fff;background:#334155}
.wg-toast-success{background:#16a34a}.wg-toast-warning{background:#d97706}.wg-toast-error{background:#dc2626}
`

// EditorShell is the editing surface: the sandboxed frame, the property
// panel, the code view and the persistence controls.
func EditorShell(d EditorData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		cfg, err := json.Marshal(editorConfig{WebsiteID: d.WebsiteID, Socket: d.Socket})
		if err != nil {
			return err
		}

		var b strings.Builder
		b.WriteString(`<style>` + editorCSS + `</style>`)
		b.WriteString(`<script type="application/json" id="wg-config">` + strings.ReplaceAll(string(cfg), "</", `<\/`) + `</script>`)
		b.WriteString(`<div class="wg-editor"><section>`)
		b.WriteString(`<div class="wg-status">State: <span id="wg-state">empty</span>` +
			` <span id="wg-slug"></span> <span id="wg-live" hidden>Published</span></div>`)
		b.WriteString(`<div id="wg-loading" hidden>Loading preview...</div>`)
		b.WriteString(`<div id="wg-error" class="wg-panel wg-error" role="alert" hidden><h2>Preview unavailable</h2>` +
			`<p id="wg-error-msg"></p><button id="wg-retry" class="wg-btn primary" type="button">Retry</button></div>`)
		b.WriteString(`<iframe id="wg-frame" title="Website preview" sandbox="allow-scripts"></iframe>`)
		b.WriteString(`<details><summary>Code</summary><textarea id="wg-code" rows="16" spellcheck="false"></textarea>` +
			`<button id="wg-reload-raw" class="wg-btn" type="button">Apply code</button></details>`)
		b.WriteString(`</section><aside class="wg-side">`)
		b.WriteString(`<label>Website name<input id="wg-name" value="` + templ.EscapeString(d.Name) + `"></label>` +
			`<button id="wg-rename" class="wg-btn" type="button">Rename</button>` +
			` <button id="wg-save" class="wg-btn primary" type="button">Save</button>` +
			` <button id="wg-publish" class="wg-btn primary" type="button">Publish</button>`)
		b.WriteString(`<div id="wg-props" hidden><h3>Editing <span id="wg-tag"></span></h3>` +
			`<label>Text<textarea id="wg-text" rows="3"></textarea></label><button id="wg-apply-text" class="wg-btn" type="button">Apply</button>` +
			`<label>Color<input id="wg-color" type="color"></label><button id="wg-apply-color" class="wg-btn" type="button">Apply</button>` +
			`<label>Background<input id="wg-bg" type="color"></label><button id="wg-apply-bg" class="wg-btn" type="button">Apply</button>` +
			`<label>Font size<input id="wg-size" type="number" min="1"></label><button id="wg-apply-size" class="wg-btn" type="button">Apply</button>` +
			`<div id="wg-image-row" hidden><label>Image URL<input id="wg-image" type="url"></label>` +
			`<button id="wg-apply-image" class="wg-btn" type="button">Apply</button></div>` +
			`<div id="wg-link-row" hidden><label>Link URL<input id="wg-link"></label>` +
			`<button id="wg-apply-link" class="wg-btn" type="button">Apply</button></div>` +
			`<p><button id="wg-deselect" class="wg-btn" type="button">Done</button></p></div>`)
		b.WriteString(`<h3>Custom domain</h3><label>Domain<input id="wg-domain" placeholder="yourdomain.com"></label>` +
			`<button id="wg-set-domain" class="wg-btn" type="button">Save domain</button>` +
			` <button id="wg-verify-domain" class="wg-btn" type="button">Verify</button>`)
		b.WriteString(`</aside></div><div id="wg-toasts" class="wg-toasts" aria-live="polite"></div>`)
		b.WriteString(`<script>` + hostJS + `</script>`)

		_, err = io.WriteString(w, b.String())
		return err
	})
}
