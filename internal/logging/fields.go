package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供请求路径、策略与拦截状态字段，供 fetch/passthrough 日志复用。
func RequestFields(method, path, strategy, generation string, intercepted bool) logrus.Fields {
	return logrus.Fields{
		"method":      method,
		"path":        path,
		"strategy":    strategy,
		"generation":  generation,
		"intercepted": intercepted,
	}
}
