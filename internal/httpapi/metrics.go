package httpapi

import "github.com/prometheus/client_golang/prometheus"

var (
	tasksCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solverd_tasks_created_total",
		Help: "Tasks accepted through the solve endpoint",
	})
	tasksCancelled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solverd_tasks_cancelled_total",
		Help: "Cancellation requests accepted",
	})
	eventsStreamed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "solverd_events_streamed_total",
		Help: "Events delivered to stream subscribers",
	}, []string{"transport"})
	chatMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solverd_chat_messages_total",
		Help: "Chat messages answered over the WebSocket endpoint",
	})
)

func init() {
	prometheus.MustRegister(tasksCreated, tasksCancelled, eventsStreamed, chatMessages)
}
