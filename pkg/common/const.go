package common

const (
	KEY_BOARD_MEMBERS = "board_members:%s"
	KEY_SYSTEM_PARAM  = "system_param:%s"
)

const (
	ACTOR_SCHEDULER = "scheduler"
	ACTOR_API       = "api"
	ACTOR_CLI       = "cli"
)

const (
	KEY_LOG_HOOK_SEND_ALERT = "send_alert"
)
