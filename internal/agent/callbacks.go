package agent

// Callbacks observes agent execution. Every field is optional; the
// orchestrator checks each for nil before invoking it.
type Callbacks struct {
	OnPhaseStart    func(phase Phase)
	OnPhaseComplete func(phase Phase)

	OnUnderstandingComplete func(understanding Understanding)
	OnPlanCreated           func(plan *Plan, iteration int)
	OnIterationStart        func(iteration int)
	OnReflectionComplete    func(reflection ReflectionResult, iteration int)

	OnAnswerStart  func()
	OnAnswerStream func(chunk string)

	OnTaskStart    func(task *Task)
	OnTaskComplete func(task *Task, result TaskResult)
	OnTaskFailed   func(task *Task, err error)

	OnToolCallUpdate func(taskID string, toolIndex int, status TaskStatus, output, errMsg string)
}

func (c *Callbacks) phaseStart(p Phase) {
	if c != nil && c.OnPhaseStart != nil {
		c.OnPhaseStart(p)
	}
}

func (c *Callbacks) phaseComplete(p Phase) {
	if c != nil && c.OnPhaseComplete != nil {
		c.OnPhaseComplete(p)
	}
}

func (c *Callbacks) understandingComplete(u Understanding) {
	if c != nil && c.OnUnderstandingComplete != nil {
		c.OnUnderstandingComplete(u)
	}
}

func (c *Callbacks) planCreated(p *Plan, iteration int) {
	if c != nil && c.OnPlanCreated != nil {
		c.OnPlanCreated(p, iteration)
	}
}

func (c *Callbacks) iterationStart(iteration int) {
	if c != nil && c.OnIterationStart != nil {
		c.OnIterationStart(iteration)
	}
}

func (c *Callbacks) reflectionComplete(r ReflectionResult, iteration int) {
	if c != nil && c.OnReflectionComplete != nil {
		c.OnReflectionComplete(r, iteration)
	}
}

func (c *Callbacks) answerStart() {
	if c != nil && c.OnAnswerStart != nil {
		c.OnAnswerStart()
	}
}

func (c *Callbacks) answerStream(chunk string) {
	if c != nil && c.OnAnswerStream != nil {
		c.OnAnswerStream(chunk)
	}
}

func (c *Callbacks) taskStart(t *Task) {
	if c != nil && c.OnTaskStart != nil {
		c.OnTaskStart(t)
	}
}

func (c *Callbacks) taskComplete(t *Task, r TaskResult) {
	if c != nil && c.OnTaskComplete != nil {
		c.OnTaskComplete(t, r)
	}
}

func (c *Callbacks) taskFailed(t *Task, err error) {
	if c != nil && c.OnTaskFailed != nil {
		c.OnTaskFailed(t, err)
	}
}

func (c *Callbacks) toolCallUpdate(taskID string, toolIndex int, status TaskStatus, output, errMsg string) {
	if c != nil && c.OnToolCallUpdate != nil {
		c.OnToolCallUpdate(taskID, toolIndex, status, output, errMsg)
	}
}
