package workspace

// pyprojectTemplate seeds the backend manifest. Installed packages land in
// the app dependency group; the base group carries the server stack every
// generated backend needs.
const pyprojectTemplate = `[project]
name = "user-project"
version = "1.0.0"
description = "Generated project backend"
requires-python = ">=3.11,<3.12"
dependencies = []

[dependency-groups]
base = [
  "uvicorn[standard]>=0.34.0",
  "fastapi>=0.115.7",
  "pydantic>=2.10.5",
  "httpx>=0.28.1",
  "python-multipart>=0.0.9",
  "pyjwt>=2.10.1",
  "cryptography>=44.0.0",
  "asyncpg>=0.30.0",
  "python-dotenv>=1.0.1",
  "requests",
  "beautifulsoup4",
  "psutil",
  "toml",
]
app = []
`

// mainPyTemplate is the uvicorn entry point. It mounts every module under
// app/apis that exposes a router, so generated endpoints appear without
// touching this file.
const mainPyTemplate = `from fastapi import FastAPI
from fastapi.middleware.cors import CORSMiddleware


def create_app() -> FastAPI:
    app = FastAPI(title="User Project API", version="1.0.0")

    app.add_middleware(
        CORSMiddleware,
        allow_origins=["*"],
        allow_credentials=True,
        allow_methods=["*"],
        allow_headers=["*"],
    )

    @app.get("/health")
    def health() -> dict:
        return {"status": "ok"}

    import importlib
    import pkgutil
    from pathlib import Path

    apis_path = Path(__file__).parent / "app" / "apis"
    if apis_path.exists():
        for module_info in pkgutil.iter_modules([str(apis_path)]):
            try:
                module = importlib.import_module(f"app.apis.{module_info.name}")
            except Exception as exc:
                print(f"failed to load app.apis.{module_info.name}: {exc}")
                continue
            if hasattr(module, "router"):
                app.include_router(module.router)

    return app


app = create_app()
`

// packageJSONSeed is a minimal frontend manifest; the preview builder
// composes the full dependency set on every build.
const packageJSONSeed = `{
  "name": "user-project-frontend",
  "private": true,
  "version": "1.0.0",
  "type": "module",
  "dependencies": {}
}
`
