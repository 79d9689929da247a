package config

import "time"

type CallConfig interface {
	GetCallType() string
	GetRingMode() bool
	GetLeaveGrace() time.Duration
	GetLeaveCooldown() time.Duration
	GetLeaveAttempts() int
	GetLeaveRetryDelay() time.Duration
}

type Call struct {
	CallType      string        `env:"CALL_TYPE" yaml:"callType"`
	RingMode      bool          `env:"CALL_RING_MODE" yaml:"ringMode"`
	LeaveGrace    time.Duration `env:"CALL_LEAVE_GRACE" yaml:"leaveGrace"`
	LeaveCooldown time.Duration `env:"CALL_LEAVE_COOLDOWN" yaml:"leaveCooldown"`
	LeaveAttempts int           `env:"CALL_LEAVE_ATTEMPTS" yaml:"leaveAttempts"`
	LeaveRetry    time.Duration `env:"CALL_LEAVE_RETRY" yaml:"leaveRetry"`
}

var _ CallConfig = Call{}

func (c Call) GetCallType() string {
	return c.CallType
}

func (c Call) GetRingMode() bool {
	return c.RingMode
}

func (c Call) GetLeaveGrace() time.Duration {
	return c.LeaveGrace
}

func (c Call) GetLeaveCooldown() time.Duration {
	return c.LeaveCooldown
}

func (c Call) GetLeaveAttempts() int {
	return c.LeaveAttempts
}

func (c Call) GetLeaveRetryDelay() time.Duration {
	return c.LeaveRetry
}
