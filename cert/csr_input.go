package cert

// CACSRInput struct.
type CACSRInput struct {
	CommonName string
}

// ServerCSRInput struct.
// Hosts carries DNS names and literal IPs; the loopback address is
// always added to the issued certificate's SANs.
type ServerCSRInput struct {
	CommonName string
	Hosts      []string
}
