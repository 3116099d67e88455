package params

import "time"

type WebDaemonConfig struct {
	ListenerConfig
	DataDir string
	Trainer *TrainerConfig

	// Strategy names the default scoring strategy for classify requests.
	Strategy string

	// SocketThrottle is the least time between trainer states broadcast to websockets.
	SocketThrottle time.Duration
}

func DefaultWebListenerConfig() ListenerConfig {
	return ListenerConfig{
		Network: "tcp",
		Address: "localhost:3000",
	}
}

func DefaultWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		DataDir:        DatadirRoot,
		ListenerConfig: DefaultWebListenerConfig(),
		Trainer:        DefaultTrainerConfig(),
		Strategy:       "combined",
		SocketThrottle: 250 * time.Millisecond,
	}
}

func DefaultTestWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		DataDir: "",
		ListenerConfig: ListenerConfig{
			Network: "tcp",
			Address: "localhost:3333",
		},
		Trainer:  DefaultTestTrainerConfig(),
		Strategy: "range",
	}
}
