package vpn

import "net"

// Blocklist holds CIDR ranges of known datacenter and VPN providers,
// checked with bitwise containment. The table is advisory: it will both
// over-block shared hosting and miss new provider ranges, so callers treat
// a hit as a heuristic signal, not a security boundary.
type Blocklist struct {
	networks []*net.IPNet
}

// NewBlocklist parses the given CIDR strings. Entries that fail to parse
// are skipped.
func NewBlocklist(cidrs []string) *Blocklist {
	networks := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		networks = append(networks, ipNet)
	}
	return &Blocklist{networks: networks}
}

// DefaultBlocklist returns the built-in datacenter/VPN provider table.
func DefaultBlocklist() *Blocklist {
	return NewBlocklist(defaultBlockedCIDRs)
}

// Contains reports whether ip falls inside any blocked range.
func (b *Blocklist) Contains(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, network := range b.networks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// Len returns the number of parsed ranges.
func (b *Blocklist) Len() int {
	return len(b.networks)
}

// Known datacenter and VPN egress ranges. Commercial VPN exits cluster in
// hosting providers, so hosting-wide ranges stand in for individual VPN
// products.
var defaultBlockedCIDRs = []string{
	// DigitalOcean
	"68.183.0.0/16",
	"104.131.0.0/16",
	"107.170.0.0/16",
	"128.199.0.0/16",
	"138.197.0.0/16",
	"139.59.0.0/16",
	"142.93.0.0/16",
	"157.245.0.0/16",
	"159.65.0.0/16",
	"159.89.0.0/16",
	"161.35.0.0/16",
	"164.90.0.0/16",
	"165.22.0.0/16",
	"167.71.0.0/16",
	"167.99.0.0/16",
	"178.62.0.0/16",
	"188.166.0.0/16",
	"206.189.0.0/16",

	// Linode
	"45.33.0.0/17",
	"45.56.64.0/18",
	"45.79.0.0/16",
	"50.116.0.0/18",
	"66.175.208.0/20",
	"96.126.96.0/19",
	"139.162.0.0/16",
	"172.104.0.0/15",
	"173.255.192.0/18",

	// Vultr
	"45.32.0.0/16",
	"45.63.0.0/17",
	"45.76.0.0/15",
	"66.42.32.0/19",
	"95.179.128.0/17",
	"104.156.224.0/19",
	"108.61.0.0/16",
	"140.82.0.0/17",
	"149.28.0.0/16",
	"207.246.64.0/18",
	"209.250.224.0/19",

	// OVH
	"51.38.0.0/16",
	"51.68.0.0/16",
	"51.75.0.0/16",
	"51.77.0.0/16",
	"51.83.0.0/16",
	"51.89.0.0/16",
	"51.91.0.0/16",
	"54.36.0.0/16",
	"139.99.0.0/16",
	"145.239.0.0/16",
	"146.59.0.0/16",
	"147.135.0.0/16",
	"151.80.0.0/16",
	"158.69.0.0/16",
	"164.132.0.0/16",
	"167.114.0.0/16",
	"178.32.0.0/15",
	"198.27.64.0/18",
	"213.32.0.0/17",

	// Hetzner
	"5.9.0.0/16",
	"78.46.0.0/15",
	"88.198.0.0/16",
	"94.130.0.0/16",
	"95.216.0.0/16",
	"116.202.0.0/16",
	"135.181.0.0/16",
	"138.201.0.0/16",
	"144.76.0.0/16",
	"148.251.0.0/16",
	"157.90.0.0/16",
	"159.69.0.0/16",
	"168.119.0.0/16",
	"176.9.0.0/16",
	"195.201.0.0/16",

	// AWS
	"3.0.0.0/9",
	"18.130.0.0/16",
	"34.192.0.0/10",
	"52.0.0.0/10",
	"54.144.0.0/12",

	// Google Cloud
	"34.64.0.0/10",
	"35.184.0.0/13",
	"104.154.0.0/15",
	"130.211.0.0/16",
	"146.148.0.0/17",

	// Azure
	"13.64.0.0/11",
	"20.33.0.0/16",
	"40.74.0.0/15",
	"52.224.0.0/11",
	"104.40.0.0/13",

	// M247 (hosts many commercial VPN exits)
	"37.120.128.0/17",
	"89.238.128.0/17",
	"146.70.0.0/16",
	"185.189.112.0/22",

	// Datacamp / CDN77
	"89.187.160.0/19",
	"138.199.0.0/16",
	"143.244.32.0/19",
	"156.146.32.0/19",
}
