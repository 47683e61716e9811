// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"fmt"
	"net/http"
)

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.origins.allows(r) {
		return true
	}

	s.logger.Warn("blocked websocket connection from disallowed origin", "origin", r.Header.Get("Origin"))
	return false
}

// WebSocketHandler upgrades the request and runs the chat protocol on the
// resulting connection until it closes. WebSocket clients share the room with
// TCP clients.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	s.ServeConn(newWSConn(conn, r.RemoteAddr, s.cfg, s.logger.With("addr", r.RemoteAddr)))
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message including the number of users online.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "linechat server is running! users online: %d", s.registry.Len())
}

// TestPageHandler serves an HTML page that joins the room over the
// WebSocket endpoint and speaks the line protocol directly.
func (s *Server) TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPage)
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>linechat WebSocket Test</title>
    <style>
        body { font-family: monospace; margin: 20px; }
        #log {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            white-space: pre-wrap;
        }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
    </style>
</head>
<body>
    <h1>linechat WebSocket Test</h1>

    <div>
        <input type="text" id="username" placeholder="Username">
        <button id="connectButton" onclick="toggleConnection()">Join</button>
    </div>
    <div>
        <input type="text" id="messageInput" placeholder="Type a message, /names or /quit" disabled>
        <button id="sendButton" onclick="submitInput()" disabled>Send</button>
    </div>

    <div id="log"></div>

    <script>
        let ws = null;
        let me = '';
        const log = document.getElementById('log');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');
        const connectButton = document.getElementById('connectButton');

        function appendLine(text) {
            const line = document.createElement('div');
            line.textContent = new Date().toTimeString().slice(0, 8) + '  ' + text;
            log.appendChild(line);
            log.scrollTop = log.scrollHeight;
        }

        function parseFrame(line) {
            const first = line.indexOf(' ');
            const second = line.indexOf(' ', first + 1);
            if (first < 0 || second < 0) {
                return null;
            }
            return {
                kind: line.slice(0, first),
                sender: line.slice(first + 1, second),
                payload: line.slice(second + 1),
            };
        }

        function setJoined(joined) {
            messageInput.disabled = !joined;
            sendButton.disabled = !joined;
            connectButton.textContent = joined ? 'Leave' : 'Join';
        }

        function connect() {
            me = document.getElementById('username').value;
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = function() { ws.send('name  ' + me); };
            ws.onmessage = function(event) {
                const frame = parseFrame(event.data);
                if (!frame) {
                    return;
                }
                if (frame.kind === 'welcome') {
                    setJoined(true);
                    appendLine('<server> Joined as ' + me);
                } else if (frame.kind === 'error') {
                    appendLine('Invalid username: ' + frame.payload);
                } else if (frame.kind === 'msg') {
                    appendLine(frame.sender ? frame.sender + ': ' + frame.payload : '<server> ' + frame.payload);
                } else if (frame.kind === 'users') {
                    appendLine('<server> Users online: ' + frame.payload);
                }
            };
            ws.onclose = function() {
                appendLine('<server> Connection closed');
                setJoined(false);
                ws = null;
            };
        }

        function toggleConnection() {
            if (ws) {
                ws.close();
            } else {
                connect();
            }
        }

        function submitInput() {
            const text = messageInput.value;
            messageInput.value = '';
            if (!ws || !text) {
                return;
            }
            if (text === '/quit') {
                ws.close();
            } else if (text === '/names') {
                ws.send('users  ');
            } else {
                ws.send('msg ' + me + ' ' + text);
                appendLine(me + ': ' + text);
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                submitInput();
            }
        });
    </script>
</body>
</html>`
