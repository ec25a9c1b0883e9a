package event

// 平台内置的事件类型。类型字符串带尾部分隔符，
// 方便拼接具体标识构造窄订阅主题（如 EventTick + vt_symbol）。
const (
	EventTimer    = "eTimer"
	EventTick     = "eTick."
	EventTrade    = "eTrade."
	EventOrder    = "eOrder."
	EventPosition = "ePosition."
	EventAccount  = "eAccount."
	EventContract = "eContract."
	EventQuote    = "eQuote."
	EventLog      = "eLog"
)

// Event 事件对象：类型字符串用于分发，Data 为实际载荷。
// 事件按惯例不可变：处理函数不得修改 Data 指向的对象。
type Event struct {
	Type string
	Data any
}

// NewEvent 创建事件对象
func NewEvent(eventType string, data any) Event {
	return Event{Type: eventType, Data: data}
}

// Handler 事件处理函数
type Handler func(Event)
