package ws

// ClientMsg é a mensagem que o cliente pode mandar pelo socket (só "ping").
type ClientMsg struct {
	Type string `json:"type"`
}
