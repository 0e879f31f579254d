package rgoc

import (
	"fmt"
	"strings"
)

// emitRuntimeHelpers writes the hand-written runtime helpers every program
// links against (§4.3.4): release_heap_ptr, deep_release_heap_ptr,
// deepcopy_heap_ptr, memcpy_helper, rgo_write, and itoa. They are emitted
// once per translation unit, after every user/generated function.
func emitRuntimeHelpers(out *strings.Builder, artifacts *Artifacts) {
	emitReleaseHeapPtr(out)
	emitDeepReleaseHeapPtr(out)
	emitDeepcopyHeapPtr(out)
	emitMemcpyHelper(out)
	emitRgoWrite(out)
	emitItoa(out, artifacts)
}

func emitReleaseHeapPtr(out *strings.Builder) {
	out.WriteString("global release_heap_ptr\nrelease_heap_ptr:\n")
	out.WriteString("    push rbp\n    mov rbp, rsp\n    push rbx\n")
	out.WriteString("    mov rbx, rdi\n")
	fmt.Fprintf(out, "    mov rcx, [rbx%+d]\n", envMetaEnvSizeOffset-envMetaSize)
	fmt.Fprintf(out, "    mov rdx, [rbx%+d]\n", envMetaHeapSizeOffset-envMetaSize)
	out.WriteString("    mov rdi, rbx\n    sub rdi, rcx\n    mov rsi, rdx\n")
	fmt.Fprintf(out, "    mov rax, %d\n    syscall\n", syscallMunmap)
	out.WriteString("    pop rbx\n    pop rbp\n    ret\n\n")
}

// emitDeepReleaseHeapPtr is the generic entry point every scope-exit
// release of a live closure binding calls through (mirroring how
// deepcopy_heap_ptr generically dispatches through each environment's own
// deepcopy_ptr): it reads the environment's own deep_release_ptr out of
// its metadata and calls it. That per-function `{f}_deep_release` helper
// walks any still-live closure-typed fields, releasing each recursively
// through this same entry point, before finally releasing its own block
// via the raw release_heap_ptr.
func emitDeepReleaseHeapPtr(out *strings.Builder) {
	out.WriteString("global deep_release_heap_ptr\ndeep_release_heap_ptr:\n")
	out.WriteString("    push rbp\n    mov rbp, rsp\n    push rbx\n")
	out.WriteString("    mov rbx, rdi\n")
	fmt.Fprintf(out, "    mov rax, [rbx%+d]\n", envMetaDeepReleaseOffset-envMetaSize)
	out.WriteString("    mov rdi, rbx\n    call rax\n")
	out.WriteString("    pop rbx\n    pop rbp\n    ret\n\n")
}

func emitDeepcopyHeapPtr(out *strings.Builder) {
	out.WriteString("global deepcopy_heap_ptr\ndeepcopy_heap_ptr:\n")
	out.WriteString("    push rbp\n    mov rbp, rsp\n")
	out.WriteString("    push rbx\n    push r12\n    push r13\n    push r14\n    push r15\n")
	out.WriteString("    mov r12, rdi\n")
	fmt.Fprintf(out, "    mov r14, [r12%+d]\n", envMetaEnvSizeOffset-envMetaSize)
	fmt.Fprintf(out, "    mov r15, [r12%+d]\n", envMetaHeapSizeOffset-envMetaSize)
	out.WriteString("    mov rbx, r12\n    sub rbx, r14\n")
	out.WriteString("    mov rdi, 0\n    mov rsi, r15\n")
	fmt.Fprintf(out, "    mov rdx, %d\n", protRead|protWrite)
	fmt.Fprintf(out, "    mov r10, %d\n", mapPrivate|mapAnonymous)
	out.WriteString("    mov r8, -1\n    xor r9, r9\n")
	fmt.Fprintf(out, "    mov rax, %d\n    syscall\n", syscallMmap)
	out.WriteString("    mov r13, rax\n")
	out.WriteString("    mov rdi, r13\n    mov rsi, rbx\n    mov rdx, r15\n    call memcpy_helper\n")
	out.WriteString("    mov rax, r13\n    add rax, r14\n    mov r15, rax\n")
	fmt.Fprintf(out, "    mov rax, [r15%+d]\n", envMetaDeepCopyOffset-envMetaSize)
	out.WriteString("    mov rdi, r15\n    call rax\n")
	out.WriteString("    mov rax, r15\n")
	out.WriteString("    pop r15\n    pop r14\n    pop r13\n    pop r12\n    pop rbx\n    pop rbp\n    ret\n\n")
}

// emitRgoWrite writes the NUL-terminated string pointed to by rdi to
// stdout via the raw write(2) syscall, byte-exact: unlike puts it never
// appends a trailing newline, so `write` output matches its argument
// exactly (the distinction that matters for scenarios that print a
// pre-formatted string ending in its own "\n").
func emitRgoWrite(out *strings.Builder) {
	out.WriteString("global rgo_write\nrgo_write:\n")
	out.WriteString("    push rbp\n    mov rbp, rsp\n    push rbx\n")
	out.WriteString("    mov rbx, rdi\n    xor rcx, rcx\n")
	out.WriteString("rgo_write_strlen:\n")
	out.WriteString("    cmp byte [rbx+rcx], 0\n    je rgo_write_strlen_done\n")
	out.WriteString("    inc rcx\n    jmp rgo_write_strlen\n")
	out.WriteString("rgo_write_strlen_done:\n")
	out.WriteString("    mov rsi, rbx\n    mov rdx, rcx\n")
	fmt.Fprintf(out, "    mov rdi, %d\n", stdoutFd)
	fmt.Fprintf(out, "    mov rax, %d\n    syscall\n", syscallWrite)
	out.WriteString("    pop rbx\n    pop rbp\n    ret\n\n")
}

func emitMemcpyHelper(out *strings.Builder) {
	out.WriteString("global memcpy_helper\nmemcpy_helper:\n")
	out.WriteString("    push rbp\n    mov rbp, rsp\n    xor rcx, rcx\n")
	out.WriteString("internal_memcpy_loop:\n")
	out.WriteString("    cmp rcx, rdx\n    jge internal_memcpy_done\n")
	out.WriteString("    mov rax, [rsi+rcx]\n    mov [rdi+rcx], rax\n")
	out.WriteString("    add rcx, 8\n    jmp internal_memcpy_loop\n")
	out.WriteString("internal_memcpy_done:\n    pop rbp\n    ret\n\n")
}

// emitItoa converts the 64-bit integer in rdi to a heap-allocated,
// NUL-terminated decimal string, tail-jumping into the continuation
// closure whose env_end its caller passes in r15 (itoa saves it in its own
// frame across the conversion) with the string pointer as its sole
// argument. i64::MIN is special-cased since it can't be negated.
func emitItoa(out *strings.Builder, artifacts *Artifacts) {
	const minLabel = "itoa_min_value_str"
	artifacts.AddStringLiteral(minLabel, "-9223372036854775808")

	out.WriteString("global itoa\nitoa:\n")
	out.WriteString("    push rbp\n    mov rbp, rsp\n")
	fmt.Fprintf(out, "    push %s\n", closureEnvReg)
	out.WriteString("    mov rax, rdi\n    mov r10, 0x8000000000000000\n    cmp rax, r10\n    je itoa_min_value\n")
	out.WriteString("    push rdi\n")
	fmt.Fprintf(out, "    mov rax, %d\n", syscallMmap)
	out.WriteString("    xor rdi, rdi\n    mov rsi, 64\n")
	fmt.Fprintf(out, "    mov rdx, %d\n", protRead|protWrite)
	fmt.Fprintf(out, "    mov r10, %d\n", mapPrivate|mapAnonymous)
	out.WriteString("    mov r8, -1\n    xor r9, r9\n    syscall\n")
	out.WriteString("    pop rdi\n    mov r8, rax\n    xor r10, r10\n")
	out.WriteString("    mov rax, rdi\n    cmp rax, 0\n    jge itoa_abs_done\n")
	out.WriteString("    neg rax\n    mov r10, 1\n")
	out.WriteString("itoa_abs_done:\n")
	out.WriteString("    lea r9, [r8+64]\n    mov byte [r9-1], 0\n    mov r11, r9\n    mov rcx, 10\n")
	out.WriteString("    cmp rax, 0\n    jne itoa_digit_loop\n")
	out.WriteString("    dec r11\n    mov byte [r11], '0'\n    jmp itoa_check_sign\n")
	out.WriteString("itoa_digit_loop:\n")
	out.WriteString("    xor rdx, rdx\n    div rcx\n    dec r11\n    add dl, '0'\n    mov [r11], dl\n")
	out.WriteString("    test rax, rax\n    jne itoa_digit_loop\n")
	out.WriteString("itoa_check_sign:\n")
	out.WriteString("    cmp r10, 0\n    je itoa_set_pointer\n    dec r11\n    mov byte [r11], '-'\n")
	out.WriteString("itoa_set_pointer:\n")
	out.WriteString("    mov r8, r11\n    jmp itoa_tail\n")
	out.WriteString("itoa_min_value:\n")
	fmt.Fprintf(out, "    lea r8, [rel %s]\n    jmp itoa_tail\n", minLabel)
	out.WriteString("itoa_tail:\n")
	fmt.Fprintf(out, "    mov %s, [rbp-8]\n", closureEnvReg)
	fmt.Fprintf(out, "    mov rax, [%s%+d]\n", closureEnvReg, envMetaUnwrapperOffset-envMetaSize)
	out.WriteString("    mov rsi, r8\n")
	out.WriteString("    leave\n    jmp rax\n\n")
}
