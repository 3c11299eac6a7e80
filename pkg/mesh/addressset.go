package mesh

import (
	"bufio"
	"net"
	"os"
	"strings"

	"github.com/wgmesh/meshctl/internal/errx"
)

// AddressSet is a named collection of address ranges.
type AddressSet struct {
	Name   string
	Ranges []*net.IPNet
}

// PrivateRanges is the built-in RFC1918 triple, the private-range address
// set the original ships alongside the by-country one.
func PrivateRanges() AddressSet {
	return AddressSet{
		Name:   "private_ranges",
		Ranges: mustParseCIDRs("192.168.0.0/16", "172.16.0.0/12", "10.0.0.0/8"),
	}
}

// LoadCountryRanges reads a newline-delimited CIDR file (one prefix per
// line, blank lines and lines starting with # ignored) into a named
// address set. The file itself, like the loader in the declaration API, is
// external to the core: this module ships no bundled country-IP data file.
func LoadCountryRanges(name, path string) (AddressSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return AddressSet{}, errx.Wrap(ErrConfig, err)
	}
	defer f.Close()

	var ranges []*net.IPNet
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		_, ipnet, err := net.ParseCIDR(line)
		if err != nil {
			return AddressSet{}, errx.With(ErrConfig, ": invalid CIDR %q in %s: %w", line, path, err)
		}
		ranges = append(ranges, ipnet)
	}
	if err := scanner.Err(); err != nil {
		return AddressSet{}, errx.Wrap(ErrConfig, err)
	}
	return AddressSet{Name: name, Ranges: ranges}, nil
}

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, ipnet, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, ipnet)
	}
	return out
}

// AddressSetBundle is a destination predicate: a packet's destination
// belongs to every set in Match and to none in NotMatch.
type AddressSetBundle struct {
	Match    []AddressSet
	NotMatch []AddressSet
}

// allSets returns every set named by the bundle, in Match-then-NotMatch
// order — the order Pass 2 uses to propagate sets to hosts on a path.
func (b AddressSetBundle) allSets() []AddressSet {
	out := make([]AddressSet, 0, len(b.Match)+len(b.NotMatch))
	out = append(out, b.Match...)
	out = append(out, b.NotMatch...)
	return out
}
