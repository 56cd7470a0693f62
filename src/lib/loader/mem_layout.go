package loader

const PageSize = 0x1000

// User address space layout.  Everything sits below 1GB so a user process
// needs a single top level table entry.

// UserTextBase is where a program without an image starts executing.
const UserTextBase = 0x1_0000

const UserHeapBase = 0x2000_0000

// the stack grows down from UserStackTop
const UserStackTop = 0x4000_0000
const UserStackPages = 4 /*in pages*/
const UserStackBase = UserStackTop - UserStackPages*PageSize

// UserLimit is the first address that is not a user address.
const UserLimit = uint64(1) << 38
