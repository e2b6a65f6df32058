package runtime

import (
	"github.com/normanking/axon/internal/actions"
	"github.com/normanking/axon/internal/hook"
	"github.com/normanking/axon/internal/mode"
)

// HookActionResolver lets action hooks build real actions with the same
// shared collaborators the component graphs get. The hook engine caches
// what this returns, so each action type is constructed once.
func HookActionResolver(cfg *mode.SystemConfig, deps Deps) hook.InvokerResolver {
	return func(actionType string, config map[string]any) (hook.Invoker, error) {
		a, err := actions.New(actionType, actions.Config{
			Name:    actionType,
			APIKey:  cfg.APIKey,
			RobotIP: cfg.RobotIP,
			TTS:     deps.TTS,
			Memory:  deps.Memory,
			Extra:   config,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	}
}
