package version

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeLatest string

func (f fakeLatest) Latest(context.Context) (string, error) { return string(f), nil }

type fakeDiscoverer []string

func (f fakeDiscoverer) DiscoverVersions(_ context.Context, limit int) ([]string, error) {
	if len(f) > limit {
		return f[:limit], nil
	}
	return f, nil
}

type fakeDriver struct {
	fakeLatest
	fakeDiscoverer
}

var _ = Describe("ResolveVersion", func() {
	driver := fakeDriver{
		fakeLatest:     "v3.0.0",
		fakeDiscoverer: []string{"v3.0.0", "v2.4.1", "v2.3.0", "v1.9.9"},
	}

	It("uses the driver's natural latest for the empty constraint", func() {
		v, err := ResolveVersion(context.Background(), driver, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("v3.0.0"))
	})

	It("uses the driver's natural latest for the literal latest", func() {
		v, err := ResolveVersion(context.Background(), fakeLatest("1.0"), "latest")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("1.0"))
	})

	It("selects the highest discovered version matching a semver range", func() {
		v, err := ResolveVersion(context.Background(), driver, "^2.0")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("v2.4.1"))
	})

	It("fails when a range matches nothing", func() {
		_, err := ResolveVersion(context.Background(), driver, "^4.0")
		Expect(err).To(HaveOccurred())
	})

	It("fails on a range when the driver cannot discover versions", func() {
		_, err := ResolveVersion(context.Background(), fakeLatest("1.0"), "^2.0")
		Expect(err).To(HaveOccurred())
	})

	It("returns an explicit concrete tag unchanged", func() {
		v, err := ResolveVersion(context.Background(), driver, "v2.3.0")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("v2.3.0"))
	})
})
