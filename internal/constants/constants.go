package constants

// 订单状态常量
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusFailed    = "failed"
	OrderStatusCancelled = "cancelled"
)

// 用户角色常量（由认证方签发）
const (
	RoleUser    = "USER"
	RoleAdmin   = "ADMIN"
	RoleGateway = "GATEWAY"
)

// 订单状态变更来源
const (
	TransitionSourceUser    = "user"
	TransitionSourceAdmin   = "admin"
	TransitionSourceGateway = "gateway"
)

// 支付状态常量
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSuccess   = "success"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
)

// 支付提供方常量
const (
	PaymentProviderStripe = "stripe"
)

// Stripe 事件类型
const (
	StripeEventPaymentSucceeded = "payment_intent.succeeded"
	StripeEventPaymentFailed    = "payment_intent.payment_failed"
)

// 默认结算币种
const DefaultCurrency = "usd"

// 队列常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 异步任务类型
const (
	TaskPaymentIntentCancel = "payment:intent_cancel"
)
