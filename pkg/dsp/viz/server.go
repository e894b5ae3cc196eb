package viz

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
)

// viewTimeout is how long after the last page view a bucket keeps being
// rendered.
const viewTimeout = time.Second

type ImageContainer struct {
	name string
	data []byte
}

// Name is the producer the image came from.
func (i *ImageContainer) Name() string { return i.name }

// Data is the encoded PNG.
func (i *ImageContainer) Data() []byte { return i.data }

type Producer interface {
	Name() string
	GetImage() *ImageContainer
	AddPlotOption(opt PlotOptions)
}

// Server groups producers into buckets (one per channel) and re-renders the
// buckets someone is looking at.
type Server struct {
	images          map[string]map[string]*ImageContainer
	mu              sync.RWMutex
	port            int
	srv             *http.Server
	producerBuckets map[string]map[string]Producer
	updateInterval  time.Duration
	enabled         bool
	lastViewed      map[string]time.Time
}

func NewServer(port int, updateInterval time.Duration) *Server {
	if updateInterval <= 0 {
		updateInterval = 500 * time.Millisecond
	}
	return &Server{
		images:          make(map[string]map[string]*ImageContainer),
		producerBuckets: make(map[string]map[string]Producer),
		port:            port,
		lastViewed:      make(map[string]time.Time),
		srv:             &http.Server{Addr: fmt.Sprintf(":%d", port)},
		updateInterval:  updateInterval,
		enabled:         true,
	}
}

func (s *Server) Enable(enable bool) {
	s.mu.Lock()
	s.enabled = enable
	s.mu.Unlock()
}

func (s *Server) SetUpdateInterval(interval time.Duration) {
	s.mu.Lock()
	s.updateInterval = interval
	s.mu.Unlock()
}

func (s *Server) Register(key string, p Producer) {
	s.mu.Lock()
	bucket, ok := s.producerBuckets[key]
	if !ok {
		bucket = make(map[string]Producer)
		s.producerBuckets[key] = bucket
	}
	bucket[p.Name()] = p
	s.mu.Unlock()
}

// Buckets returns the registered bucket names, sorted.
func (s *Server) Buckets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.producerBuckets))
	for key := range s.producerBuckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// refresh re-renders every bucket viewed within viewTimeout, or all of them
// when all is set.
func (s *Server) refresh(all bool) {
	type job struct {
		bucket   string
		producer Producer
	}

	s.mu.RLock()
	if !s.enabled {
		s.mu.RUnlock()
		return
	}
	var jobs []job
	for bucketName, bucket := range s.producerBuckets {
		if !all && time.Since(s.lastViewed[bucketName]) >= viewTimeout {
			continue
		}
		for _, producer := range bucket {
			jobs = append(jobs, job{bucket: bucketName, producer: producer})
		}
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()

			img := j.producer.GetImage()
			if img == nil {
				return
			}

			s.mu.Lock()
			mb, ok := s.images[j.bucket]
			if !ok {
				mb = make(map[string]*ImageContainer)
				s.images[j.bucket] = mb
			}
			mb[img.name] = img
			s.mu.Unlock()
		}(j)
	}
	wg.Wait()
}

func (s *Server) touch(bucket string) {
	s.mu.Lock()
	s.lastViewed[bucket] = time.Now()
	s.mu.Unlock()
}

func (s *Server) Run(ctx context.Context) error {
	go func() {
		for {
			s.mu.RLock()
			interval := s.updateInterval
			s.mu.RUnlock()

			select {
			case <-ctx.Done():
				s.srv.Shutdown(context.Background())
				return
			case <-time.After(interval):
				s.refresh(false)
			}
		}
	}()

	s.srv.Handler = s.Handler()

	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Handler routes / to the first bucket, /view/:bucket to an auto-refreshing
// page and /img/:bucket/:img to the latest PNG.
func (s *Server) Handler() http.Handler {
	handler := httprouter.New()
	handler.GET("/", s.handleIndex)
	handler.GET("/view/:bucket", s.handleView)
	handler.GET("/img/:bucket/:img", s.handleImage)
	return handler
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	buckets := s.Buckets()
	if len(buckets) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Location", "/view/"+url.PathEscape(buckets[0]))
	w.WriteHeader(http.StatusFound)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	bucket := params.ByName("bucket")

	s.mu.RLock()
	itemsForBucket, ok := s.producerBuckets[bucket]
	names := make([]string, 0, len(itemsForBucket))
	for key := range itemsForBucket {
		names = append(names, key)
	}
	interval := s.updateInterval
	s.mu.RUnlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	sort.Strings(names)

	s.touch(bucket)

	w.Header().Add("Content-Type", "text/html")
	fmt.Fprint(w, `<html><head><title>Phasewave Viz</title></head>`)
	fmt.Fprintf(w, `
		<script type="text/javascript">
			var toggleRefresh = true;
			function toggleOn() {
				toggleRefresh = !toggleRefresh;
			}

			function changeBucket() {
				var val = document.getElementById('bucketSelector').value;
				window.location.href = '/view/' + val;
			}
			window.onload = function() {
				for (var i = 0; i < %d; i++) {
					var img = document.getElementById('graph-' + i);
					setInterval(function(image) {
						if (toggleRefresh) {
							image.src = image.src.split("?")[0] + "?" + new Date().getTime();
						}
					}, %d, img);
				}
			}
		</script>`, len(names), interval.Milliseconds())
	fmt.Fprint(w, `<body style='background-color: black'>`)

	fmt.Fprint(w, `<select id="bucketSelector" onchange="changeBucket()">`)
	for _, bucketName := range s.Buckets() {
		selected := ""
		if bucketName == bucket {
			selected = " selected"
		}
		fmt.Fprintf(w, `<option value="%s"%s>%s</option>`, bucketName, selected, bucketName)
	}
	fmt.Fprint(w, `</select>`)
	fmt.Fprint(w, `<button onclick="toggleOn()">Refresh?</button>`)

	fmt.Fprint(w, `<div style="display: flex; flex-direction: row; flex-wrap: wrap">`)
	for idx, key := range names {
		fmt.Fprintf(w, `<div><img id="graph-%d" src="/img/%s/%s?%d" /></div>`,
			idx, url.PathEscape(bucket), url.PathEscape(key), time.Now().UnixMicro())
	}
	fmt.Fprint(w, `</div></body></html>`)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	bucketName := params.ByName("bucket")
	imgName := params.ByName("img")

	s.touch(bucketName)

	s.mu.RLock()
	img, ok := s.images[bucketName][imgName]
	s.mu.RUnlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Add("Content-Type", "image/png")
	w.Write(img.data)
}
