// Command agentorch answers queries by decomposing them into subtasks and
// running each subtask on the best-suited agent.
package main

func main() {
	Execute()
}
