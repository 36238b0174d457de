package installer

import (
	"archive/tar"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/klauspost/compress/gzip"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/flanksource/deps-fetch/pkg/database"
	"github.com/flanksource/deps-fetch/pkg/depserrors"
	"github.com/flanksource/deps-fetch/pkg/manifest"
	"github.com/flanksource/deps-fetch/pkg/pattern"
	"github.com/flanksource/deps-fetch/pkg/planner"
	"github.com/flanksource/deps-fetch/pkg/platform"
)

var testHost = platform.Platform{OS: platform.Linux, Arch: platform.X86_64}

type stubConfirm bool

func (s stubConfirm) Confirm(string) bool { return bool(s) }

func directBinaryPkg(name, url, copyAs, version string, deps ...string) manifest.PackageManifest {
	table := platform.NewTable(map[platform.Platform]manifest.DirectURLEntry{
		testHost: {
			URL:       url,
			AssetType: manifest.AssetType{Binary: &manifest.BinaryAsset{CopyAs: copyAs}},
		},
	})
	return manifest.PackageManifest{
		Name:      name,
		Source:    manifest.DownloadSource{Direct: &manifest.DirectSource{URLs: table, HardcodedVersion: version}},
		DependsOn: deps,
	}
}

func directArchivePkg(name, url, version string, files []manifest.BinaryInArchive) manifest.PackageManifest {
	table := platform.NewTable(map[platform.Platform]manifest.DirectURLEntry{
		testHost: {
			URL: url,
			AssetType: manifest.AssetType{Archive: &manifest.ArchiveAsset{
				Format: manifest.TarGz,
				Files:  files,
			}},
		},
	})
	return manifest.PackageManifest{
		Name:   name,
		Source: manifest.DownloadSource{Direct: &manifest.DirectSource{URLs: table, HardcodedVersion: version}},
	}
}

func tarGz(entries map[string]string) []byte {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range entries {
		Expect(tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o755,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		})).To(Succeed())
		_, err := tw.Write([]byte(content))
		Expect(err).NotTo(HaveOccurred())
	}
	Expect(tw.Close()).To(Succeed())
	Expect(gz.Close()).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Installer", func() {
	var (
		dbPath string
		binDir string
		db     *database.Database
		hits   atomic.Int64
		server *httptest.Server
		body   func(r *http.Request) []byte
	)

	newInstaller := func(confirm bool) *Installer {
		return &Installer{
			DB:        db,
			BinDir:    binDir,
			Host:      testHost,
			Confirmer: stubConfirm(confirm),
		}
	}

	BeforeEach(func() {
		dir := GinkgoT().TempDir()
		dbPath = filepath.Join(dir, "data.db")
		binDir = filepath.Join(dir, "bin")

		var err error
		db, err = database.Open(dbPath)
		Expect(err).NotTo(HaveOccurred())

		hits.Store(0)
		body = func(*http.Request) []byte { return []byte("hello") }
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.Write(body(r))
		}))
		DeferCleanup(server.Close)
	})

	Describe("installing a direct binary source", func() {
		resolve := func() []manifest.ResolvedPkg {
			return []manifest.ResolvedPkg{{
				Manifest: directBinaryPkg("tool", server.URL+"/t.bin", "tool", "1.0"),
				RepoName: "r",
			}}
		}

		It("places the binary, marks it executable, and records the install", func() {
			Expect(newInstaller(true).Run(context.Background(), resolve(), planner.Ignore)).To(Succeed())

			data, err := os.ReadFile(filepath.Join(binDir, "tool"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("hello"))

			if runtime.GOOS != "windows" {
				info, err := os.Stat(filepath.Join(binDir, "tool"))
				Expect(err).NotTo(HaveOccurred())
				Expect(info.Mode() & 0o111).NotTo(BeZero())
			}

			ip, ok := db.Snapshot().Installed["tool"]
			Expect(ok).To(BeTrue())
			Expect(ip.Version).To(Equal("1.0"))
			Expect(ip.RepoName).To(Equal("r"))
			Expect(ip.InstalledAsDep).To(BeFalse())
			Expect(ip.Binaries).To(Equal([]string{"tool"}))

			reopened, err := database.Open(dbPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(reopened.Snapshot().Installed).To(HaveKey("tool"))
		})

		It("records the constraint-resolved version instead of the driver's latest", func() {
			resolved := resolve()
			resolved[0].Constraint = "2.0"

			Expect(newInstaller(true).Run(context.Background(), resolved, planner.Ignore)).To(Succeed())

			ip := db.Snapshot().Installed["tool"]
			Expect(ip.Version).To(Equal("2.0"))
		})

		It("is a no-op on the second run under policy Ignore", func() {
			in := newInstaller(true)
			Expect(in.Run(context.Background(), resolve(), planner.Ignore)).To(Succeed())
			downloads := hits.Load()

			Expect(in.Run(context.Background(), resolve(), planner.Ignore)).To(Succeed())
			Expect(hits.Load()).To(Equal(downloads))
		})

	})

	Describe("installing an archive source", func() {
		It("extracts the entries matching each pattern", func() {
			payload := tarGz(map[string]string{
				"pkg/bin/tool":  "tool-bytes",
				"pkg/README.md": "docs",
			})
			body = func(*http.Request) []byte { return payload }

			p, err := pattern.Compile(`bin/tool$`)
			Expect(err).NotTo(HaveOccurred())
			resolved := []manifest.ResolvedPkg{{
				Manifest: directArchivePkg("tool", server.URL+"/t.tar.gz", "2.0",
					[]manifest.BinaryInArchive{{PathMatcher: p, CopyAs: "tool"}}),
				RepoName: "r",
			}}

			Expect(newInstaller(true).Run(context.Background(), resolved, planner.Ignore)).To(Succeed())

			data, err := os.ReadFile(filepath.Join(binDir, "tool"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("tool-bytes"))
			Expect(db.Snapshot().Installed["tool"].Version).To(Equal("2.0"))
		})

		It("aborts before any copy when a pattern matches nothing", func() {
			payload := tarGz(map[string]string{"pkg/README.md": "docs"})
			body = func(*http.Request) []byte { return payload }

			p, err := pattern.Compile(`bin/tool$`)
			Expect(err).NotTo(HaveOccurred())
			resolved := []manifest.ResolvedPkg{{
				Manifest: directArchivePkg("tool", server.URL+"/t.tar.gz", "2.0",
					[]manifest.BinaryInArchive{{PathMatcher: p, CopyAs: "tool"}}),
				RepoName: "r",
			}}

			err = newInstaller(true).Run(context.Background(), resolved, planner.Ignore)
			Expect(err).To(HaveOccurred())
			Expect(err).To(BeAssignableToTypeOf(depserrors.PatternMatchedNothing{}))

			Expect(filepath.Join(binDir, "tool")).NotTo(BeAnExistingFile())
			Expect(db.Snapshot().Installed).To(BeEmpty())
		})
	})

	Describe("collision checking", func() {
		It("rejects a binary filename already owned by another package", func() {
			Expect(db.Update(func(s *database.State) error {
				s.Installed["a"] = manifest.InstalledPackage{
					Manifest: manifest.PackageManifest{Name: "a"},
					RepoName: "r",
					Version:  "1.0",
					Binaries: []string{"x"},
				}
				return nil
			})).To(Succeed())
			before, err := os.ReadFile(dbPath)
			Expect(err).NotTo(HaveOccurred())

			resolved := []manifest.ResolvedPkg{{
				Manifest: directBinaryPkg("b", server.URL+"/b.bin", "x", "1.0"),
				RepoName: "r",
			}}
			err = newInstaller(true).Run(context.Background(), resolved, planner.Ignore)
			Expect(err).To(HaveOccurred())

			var collision depserrors.BinaryCollision
			Expect(err).To(BeAssignableToTypeOf(collision))
			collision = err.(depserrors.BinaryCollision)
			Expect(collision.Package).To(Equal("b"))
			Expect(collision.Binary).To(Equal("x"))
			Expect(collision.OwnedByPackage).To(Equal("a"))

			Expect(filepath.Join(binDir, "x")).NotTo(BeAnExistingFile())
			after, err := os.ReadFile(dbPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(after).To(Equal(before))
		})
	})

	Describe("confirmation", func() {
		It("aborts with nothing on disk when a dependency install is declined", func() {
			resolved := []manifest.ResolvedPkg{
				{Manifest: directBinaryPkg("a", server.URL+"/a.bin", "a", "1.0", "b"), RepoName: "r"},
				{Manifest: directBinaryPkg("b", server.URL+"/b.bin", "b", "1.0"), RepoName: "r", IsDep: true},
			}

			err := newInstaller(false).Run(context.Background(), resolved, planner.Ignore)
			Expect(err).To(BeAssignableToTypeOf(depserrors.UserAbort{}))
			Expect(hits.Load()).To(BeZero())
			Expect(db.Snapshot().Installed).To(BeEmpty())
			Expect(filepath.Join(binDir, "a")).NotTo(BeAnExistingFile())
		})
	})

	Describe("updating", func() {
		It("downloads nothing when the fetched version is unchanged", func() {
			resolved := []manifest.ResolvedPkg{{
				Manifest: directBinaryPkg("tool", server.URL+"/t.bin", "tool", "1.0"),
				RepoName: "r",
			}}
			in := newInstaller(true)
			Expect(in.Run(context.Background(), resolved, planner.Ignore)).To(Succeed())
			downloads := hits.Load()

			Expect(in.Run(context.Background(), resolved, planner.Update)).To(Succeed())
			Expect(hits.Load()).To(Equal(downloads))
		})

		It("keeps a package non-dep once it was installed explicitly", func() {
			Expect(newInstaller(true).Run(context.Background(), []manifest.ResolvedPkg{{
				Manifest: directBinaryPkg("tool", server.URL+"/t.bin", "tool", "1.0"),
				RepoName: "r",
			}}, planner.Ignore)).To(Succeed())

			// The same package later pulled in as a dependency of something
			// else must not lose its explicitly-installed status.
			Expect(newInstaller(true).Run(context.Background(), []manifest.ResolvedPkg{{
				Manifest: directBinaryPkg("tool", server.URL+"/t.bin", "tool", "2.0"),
				RepoName: "r",
				IsDep:    true,
			}}, planner.Update)).To(Succeed())

			ip := db.Snapshot().Installed["tool"]
			Expect(ip.Version).To(Equal("2.0"))
			Expect(ip.InstalledAsDep).To(BeFalse())
		})
	})

	Describe("repair", func() {
		It("reinstalls only packages whose binaries are missing", func() {
			resolved := []manifest.ResolvedPkg{{
				Manifest: directBinaryPkg("tool", server.URL+"/t.bin", "tool", "1.0"),
				RepoName: "r",
			}}
			in := newInstaller(true)
			Expect(in.Run(context.Background(), resolved, planner.Ignore)).To(Succeed())

			downloads := hits.Load()
			Expect(in.Repair(context.Background(), []string{"tool"})).To(Succeed())
			Expect(hits.Load()).To(Equal(downloads), "an intact install must not be re-downloaded")

			Expect(os.Remove(filepath.Join(binDir, "tool"))).To(Succeed())
			Expect(in.Repair(context.Background(), []string{"tool"})).To(Succeed())
			Expect(filepath.Join(binDir, "tool")).To(BeAnExistingFile())
		})

		It("fails for a name that is not installed", func() {
			err := newInstaller(true).Repair(context.Background(), []string{"ghost"})
			Expect(err).To(BeAssignableToTypeOf(depserrors.NotInstalled{}))
		})
	})
})
