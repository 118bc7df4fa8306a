package backends

import (
	"encoding/binary"
	"net/netip"
	"strconv"
	"strings"

	"ec2emulator/errors"
	"ec2emulator/resources"
)

// reservedAddresses is the number of addresses AWS keeps in every subnet: the network
// address, three at the bottom of the range and the broadcast address.
const reservedAddresses = 5

func parseCidr(name, value string, minBits, maxBits int, invalidCode errors.ErrorType) (netip.Prefix, error) {
	prefix, err := netip.ParsePrefix(value)
	if err != nil || !prefix.Addr().Is4() {
		return netip.Prefix{}, errors.InvalidValue(name, value, "The CIDR block is not valid.")
	}
	if prefix != prefix.Masked() {
		return netip.Prefix{}, errors.InvalidValue(name, value, "The CIDR block is not a network address.")
	}
	if prefix.Bits() < minBits || prefix.Bits() > maxBits {
		return netip.Prefix{}, errors.API(invalidCode, "The CIDR '%s' is invalid.", value)
	}
	return prefix, nil
}

// contains reports whether inner sits entirely inside outer.
func contains(outer, inner netip.Prefix) bool {
	return outer.Bits() <= inner.Bits() && outer.Contains(inner.Addr())
}

// subnetSize is the number of addresses in a subnet.
func subnetSize(prefix netip.Prefix) uint32 {
	return uint32(1) << (32 - prefix.Bits())
}

func usableAddresses(prefix netip.Prefix) int {
	return int(subnetSize(prefix)) - reservedAddresses
}

// allocateIP hands out the lowest free host address of the subnet to owner.
func allocateIP(subnet *resources.Subnet, owner string) (string, error) {
	prefix, err := netip.ParsePrefix(subnet.CidrBlock)
	if err != nil {
		return "", errors.New(errors.ErrInternal, "stored subnet CIDR is invalid",
			map[string]interface{}{"subnet_id": subnet.SubnetID}, err)
	}
	size := subnetSize(prefix)
	base := binary.BigEndian.Uint32(prefix.Addr().AsSlice())
	for offset := uint32(4); offset < size-1; offset++ {
		if _, taken := subnet.Allocated[offset]; taken {
			continue
		}
		subnet.Allocated[offset] = owner
		subnet.AvailableIPAddressCount = usableAddresses(prefix) - len(subnet.Allocated)
		var raw [4]byte
		binary.BigEndian.PutUint32(raw[:], base+offset)
		return netip.AddrFrom4(raw).String(), nil
	}
	return "", errors.API("InsufficientFreeAddressesInSubnet",
		"There are not enough free addresses in subnet '%s' to satisfy the requested number of instances.", subnet.SubnetID)
}

// releaseIP returns owner's address to the subnet.
func releaseIP(subnet *resources.Subnet, owner string) {
	prefix, err := netip.ParsePrefix(subnet.CidrBlock)
	if err != nil {
		return
	}
	for offset, holder := range subnet.Allocated {
		if holder == owner {
			delete(subnet.Allocated, offset)
		}
	}
	subnet.AvailableIPAddressCount = usableAddresses(prefix) - len(subnet.Allocated)
}

// derivedIP builds a stable address inside base (first two octets) from the hex part of id.
func derivedIP(first, second byte, id string) string {
	hexPart := id[strings.LastIndexByte(id, '-')+1:]
	var third, fourth byte
	if len(hexPart) >= 4 {
		if n, err := strconv.ParseUint(hexPart[:2], 16, 8); err == nil {
			third = byte(n)
		}
		if n, err := strconv.ParseUint(hexPart[2:4], 16, 8); err == nil {
			fourth = byte(n)
		}
	}
	if fourth == 0 || fourth == 255 {
		fourth = 10
	}
	return netip.AddrFrom4([4]byte{first, second, third, fourth}).String()
}

// dnsName renders the EC2 host name of an address.
func dnsName(prefix, ip, region string) string {
	host := prefix + "-" + strings.ReplaceAll(ip, ".", "-")
	if region == "us-east-1" {
		if prefix == "ip" {
			return host + ".ec2.internal"
		}
		return host + ".compute-1.amazonaws.com"
	}
	if prefix == "ip" {
		return host + "." + region + ".compute.internal"
	}
	return host + "." + region + ".compute.amazonaws.com"
}
