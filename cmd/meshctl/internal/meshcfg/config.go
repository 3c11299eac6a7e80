// Package meshcfg loads a declarative YAML network description and
// replays it through pkg/mesh's declaration API.
package meshcfg

import (
	"net"

	"github.com/spf13/viper"

	"github.com/wgmesh/meshctl/internal/errx"
	"github.com/wgmesh/meshctl/pkg/mesh"
	"github.com/wgmesh/meshctl/pkg/state"
)

// HostDecl declares one mesh node.
type HostDecl struct {
	Name  string `mapstructure:"name"`
	WANIP string `mapstructure:"wan_ip"`
}

// TunnelDecl declares one WireGuard tunnel edge between two declared hosts.
type TunnelDecl struct {
	Left  string `mapstructure:"left"`
	Right string `mapstructure:"right"`
	CIDR  string `mapstructure:"cidr"`
	Port  int    `mapstructure:"port"`
}

// AddressSetDecl declares one named address set, either as an inline list
// of CIDRs or as a path to a newline-delimited CIDR file.
type AddressSetDecl struct {
	Name       string   `mapstructure:"name"`
	Ranges     []string `mapstructure:"ranges"`
	RangesFile string   `mapstructure:"ranges_file"`
	UsePrivate bool     `mapstructure:"private"`
}

// NATGatewayDecl declares one output_to_nat_gateway request.
type NATGatewayDecl struct {
	Src      string   `mapstructure:"src"`
	Gateway  string   `mapstructure:"gateway"`
	Match    []string `mapstructure:"match"`
	NotMatch []string `mapstructure:"not_match"`
}

// DNSDecl declares a recursive-DNS helper on a host.
type DNSDecl struct {
	Host   string `mapstructure:"host"`
	Listen string `mapstructure:"listen"`
}

// Document is the top-level shape of a meshctl YAML file.
type Document struct {
	MockNet     bool             `mapstructure:"mock_net"`
	Hosts       []HostDecl       `mapstructure:"hosts"`
	Tunnels     []TunnelDecl     `mapstructure:"tunnels"`
	AddressSets []AddressSetDecl `mapstructure:"address_sets"`
	NATGateways []NATGatewayDecl `mapstructure:"nat_gateways"`
	DNS         []DNSDecl        `mapstructure:"dns"`
}

// Load reads and unmarshals a YAML document at path.
func Load(path string) (*Document, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errx.Wrap(mesh.ErrConfig, err)
	}
	var doc Document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, errx.Wrap(mesh.ErrConfig, err)
	}
	return &doc, nil
}

// Validate checks the document for declaration-time errors that pkg/mesh
// would otherwise only surface mid-Build (duplicate names, dangling
// references, malformed CIDRs) without yet touching any OS state.
func (d *Document) Validate() error {
	seen := make(map[string]bool, len(d.Hosts))
	for _, h := range d.Hosts {
		if h.Name == "" {
			return errx.With(mesh.ErrConfig, ": %s", "host declared with empty name")
		}
		if seen[h.Name] {
			return errx.With(mesh.ErrDuplicateHost, ": %s", h.Name)
		}
		seen[h.Name] = true
	}

	for _, t := range d.Tunnels {
		if !seen[t.Left] {
			return errx.With(mesh.ErrUnknownHost, ": %s", t.Left)
		}
		if !seen[t.Right] {
			return errx.With(mesh.ErrUnknownHost, ": %s", t.Right)
		}
		if _, _, err := net.ParseCIDR(t.CIDR); err != nil {
			return errx.With(mesh.ErrBadCIDR, ": %s", t.CIDR)
		}
		if t.Port <= 0 || t.Port > 65535 {
			return errx.With(mesh.ErrConfig, ": invalid tunnel port %d", t.Port)
		}
	}

	setNames := make(map[string]bool, len(d.AddressSets))
	for _, s := range d.AddressSets {
		if s.Name == "" {
			return errx.With(mesh.ErrConfig, ": %s", "address set declared with empty name")
		}
		setNames[s.Name] = true
	}

	for _, n := range d.NATGateways {
		if !seen[n.Src] {
			return errx.With(mesh.ErrUnknownHost, ": %s", n.Src)
		}
		if !seen[n.Gateway] {
			return errx.With(mesh.ErrUnknownHost, ": %s", n.Gateway)
		}
		if n.Src == n.Gateway {
			return errx.With(mesh.ErrSelfGateway, ": %s", n.Src)
		}
		for _, name := range append(append([]string{}, n.Match...), n.NotMatch...) {
			if !setNames[name] && name != "private_ranges" {
				return errx.With(mesh.ErrConfig, ": undeclared address set %q", name)
			}
		}
	}

	for _, dns := range d.DNS {
		if !seen[dns.Host] {
			return errx.With(mesh.ErrUnknownHost, ": %s", dns.Host)
		}
	}

	return nil
}

// Build replays the document through a Network's declaration API in file
// order (hosts, tunnels, address sets, NAT gateways, DNS) — the order
// declaration-determinism (spec.md §8) requires. Host key pairs are
// loaded from keyStore, generating and persisting a fresh pair on first
// use. restartOf supplies the per-host RestartNotifier for supervised
// processes (typically Engine.RestartNotifier).
func (d *Document) Build(network *mesh.Network, keyStore *state.KeyStore, restartOf func(host string) mesh.RestartNotifier) error {
	if err := d.Validate(); err != nil {
		return err
	}

	for _, h := range d.Hosts {
		key, err := keyStore.LoadOrCreate(h.Name)
		if err != nil {
			return err
		}
		if err := network.AddHost(h.Name, h.WANIP, key, restartOf(h.Name)); err != nil {
			return err
		}
	}

	for _, t := range d.Tunnels {
		if err := network.Connect(t.Left, t.Right, t.CIDR, t.Port); err != nil {
			return err
		}
	}

	sets := make(map[string]mesh.AddressSet, len(d.AddressSets)+1)
	sets["private_ranges"] = mesh.PrivateRanges()
	for _, s := range d.AddressSets {
		resolved, err := resolveAddressSet(s)
		if err != nil {
			return err
		}
		sets[s.Name] = resolved
	}

	for _, n := range d.NATGateways {
		bundle := mesh.AddressSetBundle{
			Match:    resolveNames(sets, n.Match),
			NotMatch: resolveNames(sets, n.NotMatch),
		}
		if err := network.OutputToNATGateway(bundle, n.Src, n.Gateway); err != nil {
			return err
		}
	}

	for _, dns := range d.DNS {
		listen := dns.Listen
		if listen == "" {
			listen = "0.0.0.0:53"
		}
		if err := network.AddDNS(dns.Host, listen, restartOf(dns.Host)); err != nil {
			return err
		}
	}

	return nil
}

func resolveAddressSet(s AddressSetDecl) (mesh.AddressSet, error) {
	if s.UsePrivate {
		return mesh.PrivateRanges(), nil
	}
	if s.RangesFile != "" {
		return mesh.LoadCountryRanges(s.Name, s.RangesFile)
	}
	var ranges []*net.IPNet
	for _, r := range s.Ranges {
		_, ipnet, err := net.ParseCIDR(r)
		if err != nil {
			return mesh.AddressSet{}, errx.With(mesh.ErrConfig, ": invalid CIDR %q in address set %q: %w", r, s.Name, err)
		}
		ranges = append(ranges, ipnet)
	}
	return mesh.AddressSet{Name: s.Name, Ranges: ranges}, nil
}

func resolveNames(sets map[string]mesh.AddressSet, names []string) []mesh.AddressSet {
	out := make([]mesh.AddressSet, 0, len(names))
	for _, n := range names {
		if s, ok := sets[n]; ok {
			out = append(out, s)
		}
	}
	return out
}
