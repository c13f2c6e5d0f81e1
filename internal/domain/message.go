package domain

// Message 是聊天平台投递进来的一条文本消息（与平台 SDK 解耦）。
type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	Content   string

	// FromSelf 表示消息由 bot 自己发出；dispatcher 必须忽略它。
	FromSelf bool
}

// EmbedField 是富消息中的一个字段（name/value）。
type EmbedField struct {
	Name  string
	Value string
}

// Embed 是平台无关的富消息：标题 + 描述 + 图片 + 分组字段。
type Embed struct {
	Title       string
	Description string
	ImageURL    string
	Fields      []EmbedField
}
