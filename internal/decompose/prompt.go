package decompose

// decompositionSystemPrompt frames the model as a project planner.
const decompositionSystemPrompt = `You are a project planner. You break high-level objectives into small, independent subtasks that specialized executors can complete. You respond with JSON only.`

// decompositionPrompt is the prompt template for objective decomposition.
const decompositionPrompt = `Break this objective into subtasks. Each subtask should be completable by a single executor.

Objective:
%s

Return ONLY a JSON array with this exact structure (no other text):
[
  {
    "description": "What to do, phrased as a single imperative sentence",
    "role": "implementation|librarian",
    "workspace": "frontend",
    "depends_on": ["description of dependency 1"],
    "priority": 1
  }
]

Guidelines:
- Subtasks should be as independent as possible
- Only add dependencies when one subtask truly requires another's output
- depends_on entries must exactly match the description of another subtask
- Use an empty array [] for depends_on when there are no dependencies
- workspace names the working area the subtask targets (e.g. frontend, backend)
- Never declare a dependency on a subtask that does not appear in the array`
