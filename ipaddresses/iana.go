package ipaddresses

// IANA special-purpose IPv4 address blocks (RFC 6890). Traffic claiming to
// originate from these cannot be a legitimate internet client.
var specialPurposeBlocks = []string{
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"192.88.99.0/24",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"255.255.255.255/32",
}

// IsSpecialPurposeAddress checks if an IP address falls in one of the IANA
// special-purpose blocks.
func IsSpecialPurposeAddress(ipAddr string) (result bool, err error) {
	for _, cidr := range specialPurposeBlocks {
		result, err = InAddressSpace(ipAddr, cidr)
		if err != nil || result {
			return
		}
	}
	return
}
