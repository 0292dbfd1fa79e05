package hub

// Policy selects what the loop does with a well-formed inbound data frame.
// The single-client and multi-client server variants share one loop and
// differ only here.
type Policy uint8

const (
	// PolicyEcho writes the payload back to the sender.
	PolicyEcho Policy = iota
	// PolicyFanOut decodes the payload as a chat envelope and relays the
	// rendered line to every other open connection.
	PolicyFanOut
	// PolicyIgnore discards inbound data frames; the connection is kept
	// only as a broadcast target.
	PolicyIgnore
)

func (p Policy) String() string {
	switch p {
	case PolicyEcho:
		return "echo"
	case PolicyFanOut:
		return "fanout"
	case PolicyIgnore:
		return "ignore"
	default:
		return "invalid"
	}
}
