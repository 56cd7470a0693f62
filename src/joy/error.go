package joy

import "fmt"

const subsystemMask = 0x00ff_0000_0000_0000
const taskIDMask = 0x0000_ffff_0000_0000
const errorNumberMask = 0x0000_0000_0000_ffff

const JoyNoError = JoyError(0)

// errno values returned (negated) from syscalls
const (
	EPERM  = 1
	ENOENT = 2
	ESRCH  = 3
	EIO    = 5
	EBADF  = 9
	ECHILD = 10
	EAGAIN = 11
	ENOMEM = 12
	EFAULT = 14
	EINVAL = 22
	ENOSYS = 38
)

// Memory Errors
const MemorySubsystem = 1
const MemoryNoFrames = 1
const MemoryBadAddress = 2
const MemorySwapFull = 3

var ErrorMemoryNoFrames = errorValue(MemorySubsystem, MemoryNoFrames)
var ErrorMemoryBadAddress = errorValue(MemorySubsystem, MemoryBadAddress)
var ErrorMemorySwapFull = errorValue(MemorySubsystem, MemorySwapFull)

// Task Errors
const TaskSubsystem = 2
const TaskNoMoreTasks = 1
const TaskNoSuchTask = 2
const TaskNoChild = 3
const TaskNoProgram = 4
const TaskBadArgument = 5

var ErrorTaskNoMoreTasks = errorValue(TaskSubsystem, TaskNoMoreTasks)
var ErrorTaskNoSuchTask = errorValue(TaskSubsystem, TaskNoSuchTask)
var ErrorTaskNoChild = errorValue(TaskSubsystem, TaskNoChild)
var ErrorTaskNoProgram = errorValue(TaskSubsystem, TaskNoProgram)
var ErrorTaskBadArgument = errorValue(TaskSubsystem, TaskBadArgument)

// Timer Errors
const TimerSubsystem = 3
const TimerNoMoreTimers = 1

var ErrorTimerNoMoreTimers = errorValue(TimerSubsystem, TimerNoMoreTimers)

// Syscall Errors
const SyscallSubsystem = 4
const SyscallUnknown = 1

var ErrorSyscallUnknown = errorValue(SyscallSubsystem, SyscallUnknown)

// JoyError is a packed error code: subsystem, the id of the task that got
// the error, and the error number.  The zero value is no error.
type JoyError uint64
type RawJoyError uint64 // error with just the constant part of the value filled in

type errorInfo struct {
	text  string
	errno int64
}

var errorMap = map[RawJoyError]errorInfo{
	ErrorMemoryNoFrames:    {"out of physical memory", ENOMEM},
	ErrorMemoryBadAddress:  {"bad user address", EFAULT},
	ErrorMemorySwapFull:    {"swap space exhausted", ENOMEM},
	ErrorTaskNoMoreTasks:   {"task table is full", EAGAIN},
	ErrorTaskNoSuchTask:    {"no such task", ESRCH},
	ErrorTaskNoChild:       {"no child to wait for", ECHILD},
	ErrorTaskNoProgram:     {"no such program", ENOENT},
	ErrorTaskBadArgument:   {"invalid argument", EINVAL},
	ErrorTimerNoMoreTimers: {"no free timers", EAGAIN},
	ErrorSyscallUnknown:    {"unknown syscall", ENOSYS},
}

func errorValue(subsys byte, errorNumber uint16) RawJoyError {
	ss := subsystemMask & (uint64(subsys) << 48)
	en := errorNumberMask & (uint64(errorNumber) << 0)
	return RawJoyError(ss | en)
}

// MakeError adds the dynamic fields (the task that hit it) to the error value.
func MakeError(rawError RawJoyError, tid int) JoyError {
	raw := uint64(rawError)
	id := (uint64(tid) << 32) & taskIDMask
	return JoyError(raw | id)
}

func (j JoyError) Raw() RawJoyError {
	return RawJoyError(uint64(j) &^ taskIDMask)
}

func (j JoyError) TaskID() int {
	return int((uint64(j) & taskIDMask) >> 32)
}

func (j JoyError) Error() string {
	info, ok := errorMap[j.Raw()]
	if !ok {
		return "Unknown error code"
	}
	return fmt.Sprintf("task %d: %s", j.TaskID(), info.text)
}

// Errno is the value a syscall returns for j: zero or a negative errno.
func (j JoyError) Errno() int64 {
	if j == JoyNoError {
		return 0
	}
	info, ok := errorMap[j.Raw()]
	if !ok {
		return -EINVAL
	}
	return -info.errno
}

// Is lets errors.Is match a JoyError against the raw constant, whatever
// task it was made for.
func (j JoyError) Is(target error) bool {
	t, ok := target.(JoyError)
	return ok && t.Raw() == j.Raw()
}

// Errno is the error a failed syscall hands back to the caller.
type Errno int64

var errnoNames = map[Errno]string{
	EPERM:  "operation not permitted",
	ENOENT: "no such program",
	ESRCH:  "no such task",
	EIO:    "i/o error",
	EBADF:  "bad file descriptor",
	ECHILD: "no child processes",
	EAGAIN: "resource temporarily unavailable",
	ENOMEM: "out of memory",
	EFAULT: "bad address",
	EINVAL: "invalid argument",
	ENOSYS: "function not implemented",
}

func (e Errno) Error() string {
	if s, ok := errnoNames[e]; ok {
		return s
	}
	return fmt.Sprintf("errno %d", int64(e))
}
