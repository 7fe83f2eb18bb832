package config

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Enable 是否注册 prometheus 指标
	Enable bool `json:"enable"`

	// Namespace 指标命名空间
	Namespace string `json:"namespace,omitempty"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enable:    true,
		Namespace: "tcflink",
	}
}
