package state_test

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/moldyn/internal/state"
	"github.com/san-kum/moldyn/internal/vector"
)

var _ = Describe("Track", func() {
	var (
		dir    string
		path   string
		logger *log.Logger
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "moldyn-track-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)
		path = filepath.Join(dir, "track.log")
		logger = log.New(io.Discard)
	})

	writeLog := func(content string) {
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
	}

	Describe("Sync", func() {
		It("appends one line per call", func() {
			tr, err := state.OpenTrack[vector.D2](path, state.WithLogger(logger))
			Expect(err).NotTo(HaveOccurred())
			*tr.Ensemble() = sampleEnsemble()

			Expect(tr.Sync(0.005)).To(Succeed())
			Expect(tr.Sync(0.01)).To(Succeed())
			Expect(tr.LastTime()).To(Equal(0.01))
			Expect(tr.Close()).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
			Expect(lines).To(HaveLen(2))
			Expect(lines[0]).To(HavePrefix("0.005. {"))
			Expect(lines[1]).To(HavePrefix("0.01. {"))
		})

		It("appends to an existing log", func() {
			writeLog("0.5. {}\n")
			tr, err := state.OpenTrack[vector.D2](path, state.WithLogger(logger))
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.Sync(1)).To(Succeed())
			Expect(tr.Close()).To(Succeed())

			data, _ := os.ReadFile(path)
			Expect(strings.Count(string(data), "\n")).To(Equal(2))
		})

		It("fails once closed", func() {
			tr, err := state.OpenTrack[vector.D2](path, state.WithLogger(logger))
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.Close()).To(Succeed())
			Expect(tr.Sync(1)).To(HaveOccurred())
			Expect(tr.Close()).To(Succeed())
		})
	})

	Describe("RestoreTrack", func() {
		It("round-trips the last checkpoint", func() {
			tr, err := state.OpenTrack[vector.D2](path, state.WithLogger(logger))
			Expect(err).NotTo(HaveOccurred())
			*tr.Ensemble() = state.NewEnsemble([]vec2{vector.New[vector.D2](7, 7)})
			Expect(tr.Sync(0.1)).To(Succeed())
			*tr.Ensemble() = sampleEnsemble()
			Expect(tr.Sync(0.2)).To(Succeed())
			Expect(tr.Close()).To(Succeed())

			back, status, err := state.RestoreTrack[vector.D2](path, state.WithLogger(logger))
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(back.Close)
			Expect(status).To(Equal(state.Restored))
			Expect(back.LastTime()).To(Equal(0.2))
			Expect(*back.Ensemble()).To(Equal(sampleEnsemble()))
		})

		It("starts cold when the log is missing", func() {
			tr, status, err := state.RestoreTrack[vector.D3](path, state.WithLogger(logger))
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(tr.Close)
			Expect(status).To(Equal(state.ColdStart))
			Expect(tr.Ensemble().Positions).To(BeEmpty())
			Expect(path).To(BeAnExistingFile())
		})

		DescribeTable("starts cold on unusable content",
			func(content string) {
				writeLog(content)
				tr, status, err := state.RestoreTrack[vector.D2](path, state.WithLogger(logger))
				Expect(err).NotTo(HaveOccurred())
				DeferCleanup(tr.Close)
				Expect(status).To(Equal(state.ColdStart))
				Expect(tr.Ensemble().Positions).To(BeEmpty())
				Expect(tr.LastTime()).To(Equal(0.0))
			},
			Entry("empty file", ""),
			Entry("blank lines", "\n\n"),
			Entry("no separator", "0.1 {}\n"),
			Entry("bad time", "abc. {\"positions\":[],\"velocities\":[],\"accelerations\":[]}\n"),
			Entry("truncated payload", "0.1. {\"positions\":[],\"velocities\":[],\"accelerations\":[]}\n0.2. {\"positions\":[[1,"),
			Entry("wrong dimension", "0.1. {\"positions\":[[1,2,3]],\"velocities\":[[0,0,0]],\"accelerations\":[[0,0,0]]}\n"),
			Entry("null payload", "0.1. null\n"),
			Entry("empty object", "0.1. {}\n"),
			Entry("no particles", "0.1. {\"positions\":[],\"velocities\":[],\"accelerations\":[]}\n"),
		)

		It("uses only the last line", func() {
			good := `0.3. {"positions":[[1,2]],"velocities":[[0,0]],"accelerations":[[0,0]]}`
			writeLog("garbage\n" + good + "\n\n")
			tr, status, err := state.RestoreTrack[vector.D2](path, state.WithLogger(logger))
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(tr.Close)
			Expect(status).To(Equal(state.Restored))
			Expect(tr.LastTime()).To(Equal(0.3))
			Expect(tr.Ensemble().Positions).To(Equal([]vec2{vector.New[vector.D2](1, 2)}))
		})

		It("reads lines longer than the read chunk", func() {
			pos := make([]vec2, 20000)
			for i := range pos {
				pos[i] = vector.New[vector.D2](float64(i), -float64(i))
			}
			tr, err := state.OpenTrack[vector.D2](path, state.WithLogger(logger))
			Expect(err).NotTo(HaveOccurred())
			*tr.Ensemble() = state.NewEnsemble(pos)
			Expect(tr.Sync(1)).To(Succeed())
			Expect(tr.Sync(2)).To(Succeed())
			Expect(tr.Close()).To(Succeed())

			back, status, err := state.RestoreTrack[vector.D2](path, state.WithLogger(logger))
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(back.Close)
			Expect(status).To(Equal(state.Restored))
			Expect(back.LastTime()).To(Equal(2.0))
			Expect(back.Ensemble().Positions).To(Equal(pos))
		})

		It("fails when the log cannot be opened for appending", func() {
			unreachable := filepath.Join(dir, "missing", "track.log")
			tr, status, err := state.RestoreTrack[vector.D2](unreachable, state.WithLogger(logger))
			Expect(err).To(HaveOccurred())
			Expect(tr).To(BeNil())
			Expect(status).To(Equal(state.ColdStart))
		})
	})

	Describe("LastSnapshot", func() {
		It("decodes the last line of a stream", func() {
			content := "0.1. {\"positions\":[[1,2]],\"velocities\":[[0,0]],\"accelerations\":[[0,0]]}\n" +
				"0.2. {\"positions\":[[3,4],[5,6]],\"velocities\":[[1,-1],[0,0.5]],\"accelerations\":[[0,0],[0,0]]}\n\n"
			snap, err := state.LastSnapshot(strings.NewReader(content))
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Time).To(Equal(0.2))
			Expect(snap.Positions).To(Equal([][]float64{{3, 4}, {5, 6}}))
			Expect(snap.Velocities).To(Equal([][]float64{{1, -1}, {0, 0.5}}))
		})

		It("reads what a track wrote", func() {
			tr, err := state.OpenTrack[vector.D2](path, state.WithLogger(logger))
			Expect(err).NotTo(HaveOccurred())
			*tr.Ensemble() = state.NewEnsemble([]vec2{vector.New[vector.D2](0.5, -0.5)})
			Expect(tr.Sync(0.75)).To(Succeed())
			Expect(tr.Close()).To(Succeed())

			f, err := os.Open(path)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(f.Close)
			snap, err := state.LastSnapshot(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Time).To(Equal(0.75))
			Expect(snap.Positions).To(Equal([][]float64{{0.5, -0.5}}))
		})

		DescribeTable("rejects unusable logs",
			func(content string) {
				_, err := state.LastSnapshot(strings.NewReader(content))
				Expect(err).To(HaveOccurred())
			},
			Entry("empty", ""),
			Entry("blank lines", "\n\n"),
			Entry("no separator", "0.1 {}\n"),
			Entry("bad payload", "0.1. {\"positions\":\n"),
		)
	})

	It("describes restore status", func() {
		Expect(state.ColdStart.String()).To(Equal("cold-start"))
		Expect(state.Restored.String()).To(Equal("restored"))
	})
})
