package webhook

import (
	"encoding/json"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/logger"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/worker"
)

type notifyJob struct {
	url   string
	event *NotificationEvent
}

// PoolNotifier fans notification events out through a worker pool. Jobs
// are fire-and-forget: a failed delivery is logged and dropped, never
// retried, so a dead downstream cannot back up webhook handling.
type PoolNotifier struct {
	manager *worker.WorkerManager
	client  *fasthttp.Client
	timeout time.Duration
}

func NewPoolNotifier(bufferSize, workers int, timeout time.Duration) *PoolNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	n := &PoolNotifier{
		manager: worker.NewWorkerManager(bufferSize, workers, nil),
		client:  &fasthttp.Client{MaxConnsPerHost: workers},
		timeout: timeout,
	}
	n.manager.SetWorker(n.deliver)
	return n
}

// Start runs the pool until the manager is told to exit. Blocking; run it
// on its own goroutine.
func (n *PoolNotifier) Start() error {
	return n.manager.Start()
}

func (n *PoolNotifier) Stop() {
	n.manager.Exit()
}

func (n *PoolNotifier) Notify(url string, event *NotificationEvent) {
	n.manager.Enqueue(&notifyJob{url: url, event: event})
}

func (n *PoolNotifier) deliver(workerIndex int, job interface{}) {
	nj, ok := job.(*notifyJob)
	if !ok {
		return
	}
	body, err := json.Marshal(nj.event)
	if err != nil {
		logger.Error("notifier: marshal event failed", "error", err)
		return
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(nj.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := n.client.DoDeadline(req, resp, time.Now().Add(n.timeout)); err != nil {
		logger.Warn("notifier: delivery failed", "url", nj.url, "worker", workerIndex, "error", err)
		return
	}
	if resp.StatusCode() >= 300 {
		logger.Warn("notifier: downstream rejected event", "url", nj.url, "status", resp.StatusCode())
	}
}
