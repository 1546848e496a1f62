package editor

const editorCSS = `
.editable-hover { outline: 2px dashed #3b82f6 !important; outline-offset: 2px; cursor: pointer; }
.editable-selected { outline: 2px solid #2563eb !important; outline-offset: 2px; position: relative; }
.edit-toolbar {
  position: absolute; top: -38px; left: 0; z-index: 2147483647;
  display: flex; gap: 4px; padding: 4px;
  background: #1f2937; border-radius: 6px; box-shadow: 0 2px 8px rgba(0,0,0,.25);
  font: 12px/1 system-ui, sans-serif;
}
.edit-toolbar button {
  all: unset; cursor: pointer; color: #f9fafb; padding: 6px 8px; border-radius: 4px;
}
.edit-toolbar button:hover { background: #374151; }
.edit-toolbar button[data-action="delete"]:hover { background: #b91c1c; }
`

// bridgeJS runs inside the sandboxed frame. It mirrors hover and selection
// affordances locally and reports every pointer and toolbar action to the
// host page, which relays them to the editing session.
const bridgeJS = `
(function () {
  var VOID = {AREA:1,BASE:1,BR:1,COL:1,EMBED:1,HR:1,IMG:1,INPUT:1,LINK:1,META:1,PARAM:1,SOURCE:1,TRACK:1,WBR:1};

  function post(msg) {
    msg.source = "webgen";
    window.parent.postMessage(msg, "*");
  }

  function indexOf(el) {
    return parseInt(el.getAttribute("data-edit-index"), 10);
  }

  function clearSelection() {
    document.querySelectorAll(".edit-toolbar").forEach(function (t) { t.remove(); });
    document.querySelectorAll(".editable-selected, .editable-hover").forEach(function (el) {
      el.classList.remove("editable-selected", "editable-hover");
    });
  }

  function toolbar(i) {
    var bar = document.createElement("div");
    bar.className = "edit-toolbar";
    bar.setAttribute("data-for-index", String(i));
    bar.setAttribute("contenteditable", "false");
    [["edit", "Edit"], ["delete", "Delete"], ["duplicate", "Duplicate"]].forEach(function (a) {
      var b = document.createElement("button");
      b.type = "button";
      b.setAttribute("data-action", a[0]);
      b.textContent = a[1];
      bar.appendChild(b);
    });
    return bar;
  }

  function select(el) {
    var i = indexOf(el);
    var cs = window.getComputedStyle(el);
    var style = {color: cs.color, backgroundColor: cs.backgroundColor, fontSize: cs.fontSize};
    clearSelection();
    el.classList.add("editable-selected");
    if (VOID[el.tagName]) {
      el.parentNode.insertBefore(toolbar(i), el);
    } else {
      el.insertBefore(toolbar(i), el.firstChild);
    }
    post({type: "select", index: i, style: style});
  }

  window.addEventListener("message", function (e) {
    if (e.source !== window.parent || !e.data || e.data.source !== "webgen-host") return;
    if (e.data.type === "deselect") clearSelection();
  });

  document.addEventListener("click", function (e) {
    var btn = e.target.closest && e.target.closest(".edit-toolbar button");
    if (!btn) return;
    e.preventDefault();
    e.stopPropagation();
    var bar = btn.closest(".edit-toolbar");
    post({type: btn.getAttribute("data-action"), index: parseInt(bar.getAttribute("data-for-index"), 10)});
  }, true);

  document.querySelectorAll("[data-edit-index]").forEach(function (el) {
    el.addEventListener("mouseenter", function () {
      if (!el.classList.contains("editable-selected")) el.classList.add("editable-hover");
      post({type: "hover", index: indexOf(el)});
    });
    el.addEventListener("mouseleave", function () {
      el.classList.remove("editable-hover");
      post({type: "leave", index: indexOf(el)});
    });
    el.addEventListener("click", function (e) {
      e.preventDefault();
      e.stopPropagation();
      select(el);
    });
  });
})();
`
